// Package cli реализует инструмент командной строки doc-orchestrator.
//
// # Обзор
//
// Просмотр задач идёт через HTTP API, CLI не импортирует внутренние
// пакеты сервиса. Запросы на новые задачи (submit) публикуются прямо в
// очередь задач через Submitter, который собирается в main.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для API задач. Инкапсулирует запросы,
// парсинг ответов (data, list, error) и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080", token)
//	tasks, total, err := client.ListTasks(cli.ListTasksOpts{Status: "ERROR"})
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: doc-orchestrator-cli task list --json | jq .
//
// ## Commands
//
//   - task: list, show, analysis, delete
//   - submit
//
// Фабричные функции (NewTaskCmd, NewSubmitCmd) принимают замыкания
// для ленивого создания Client, Submitter и Output после парсинга PersistentFlags.
package cli
