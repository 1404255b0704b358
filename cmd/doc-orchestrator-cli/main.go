// doc-orchestrator-cli — инструмент командной строки для просмотра
// задач импорта и отправки запросов на новые задачи.
//
// Использование:
//
//	doc-orchestrator-cli [--api-url URL] [--token TOKEN] [--json] <command> [flags]
//
// Команды:
//
//	task    Просмотр задач (list, show, analysis, delete)
//	submit  Отправить запрос на задачу в очередь
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/doc-orchestrator/internal/cli"
	"github.com/shaiso/doc-orchestrator/internal/mq"
	"github.com/shaiso/doc-orchestrator/internal/telemetry"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var token string
	var jsonOutput bool
	var amqpURL string
	var tasksQueue string

	rootCmd := &cobra.Command{
		Use:           "doc-orchestrator-cli",
		Short:         "doc-orchestrator CLI — document import tasks",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", envOr("DOC_ORCHESTRATOR_API_URL", "http://localhost:8080"), "API server URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("API_ADMIN_TOKEN"), "Admin bearer token")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVar(&amqpURL, "amqp-url", envOr("RABBITMQ_URL", mq.DefaultURL()), "RabbitMQ URL (submit)")
	rootCmd.PersistentFlags().StringVar(&tasksQueue, "queue", "DOC-TASKS", "Tasks queue name (submit)")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL, token) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }
	submitterFn := func(ctx context.Context) (cli.Submitter, error) {
		return dialSubmitter(ctx, amqpURL, tasksQueue)
	}

	rootCmd.AddCommand(
		cli.NewTaskCmd(clientFn, outputFn),
		cli.NewSubmitCmd(submitterFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// busSubmitter публикует запросы в очередь задач.
type busSubmitter struct {
	conn      *mq.Connection
	publisher *mq.Publisher
}

func dialSubmitter(ctx context.Context, url, queue string) (*busSubmitter, error) {
	logger := telemetry.SetupLogger("WARN", "text")

	conn, err := mq.Dial(ctx, mq.DialConfig{URL: url, Attempts: 3, Delay: time.Second}, logger)
	if err != nil {
		return nil, err
	}

	q, err := conn.OpenQueue(queue, 0)
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &busSubmitter{conn: conn, publisher: mq.NewPublisher(q, logger)}, nil
}

func (s *busSubmitter) Submit(ctx context.Context, req *cli.TaskRequest) error {
	return s.publisher.Publish(ctx, req)
}

func (s *busSubmitter) Close() error {
	return s.conn.Close()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
