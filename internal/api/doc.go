// Package api содержит HTTP API над задачами импорта.
//
// Структура:
//   - handler.go      — Handler с DI (хранилище задач, токен администратора, logger)
//   - routes.go       — регистрация маршрутов
//   - middleware.go   — middleware (logging, metrics, recovery, admin auth)
//   - response.go     — унифицированные JSON-ответы и обработка ошибок
//   - dto.go          — ответы и разбор фильтров/пагинации
//   - task_handler.go — обработчики для /api/v1/doc-importer/task
//
// API только читает задачи. Удаление и диагностика требуют токена администратора.
package api
