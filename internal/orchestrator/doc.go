// Package orchestrator ведёт задачи импорта документов.
//
// Orchestrator отвечает за:
//   - Приём запросов из DOC-TASKS: не больше одной активной задачи на dataset
//   - Создание задачи и отправку первой команды executor'у
//   - Применение событий executor'а из DOC-STATUS к задаче
//   - Подсчёт чтений/записей и запрос подтверждения импорта
//   - Финализацию задачи и dataset (SAVED/ERROR)
//
// Executor сам ничего не решает: порядок команд определяет Orchestrator.
package orchestrator
