// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — подключение с ограниченным числом попыток, уведомление о разрыве
//   - queue.go      — логическая очередь: свой confirm-канал, durable, prefetch
//   - publisher.go  — публикация JSON-сообщений с подтверждением брокера
//   - consumer.go   — последовательное потребление с ручным ack и повторной доставкой
//   - retry.go      — политика повторов, счётчик в заголовке x-redelivered-count
//
// Очереди (по умолчанию):
//   - DOC-TASKS          — запросы на создание задач
//   - DOC-STATUS         — события executor'а
//   - DOC-EXECUTOR-TASKS — команды executor'у
//
// Нативный nack/requeue брокера не используется. Если обработчик вернул
// ошибку, исходное сообщение подтверждается, а его копия публикуется
// в конец той же очереди с увеличенным счётчиком. После MaxAttempts
// повторов сообщение отбрасывается.
package mq
