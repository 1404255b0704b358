package repo

import "errors"

// Общие ошибки репозиториев.
var (
	// ErrNotFound — запись не найдена в БД.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists — запись уже существует (конфликт уникальности).
	// Для задач это либо повтор id, либо уже активная задача на dataset.
	ErrAlreadyExists = errors.New("already exists")

	// ErrConflict — запись изменилась с момента чтения (не совпала версия).
	ErrConflict = errors.New("version conflict")
)
