// Package dataset — HTTP-клиент сервиса метаданных dataset.
//
// Оркестратор отражает в dataset состояние задачи: статус (числовой,
// 0 — pending, 1 — saved, 2 — error), ссылку на активную задачу,
// текст ошибки, имя таблицы (индекса) и список источников.
//
//	GET   {CT_URL}/v1/dataset/{id}   → {"data": {"id": ..., "attributes": {...}}}
//	PATCH {CT_URL}/v1/dataset/{id}   ← только изменяемые поля
//
// Все запросы проходят через общий rate.Limiter.
package dataset
