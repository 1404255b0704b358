package mq

import "errors"

var (
	// ErrConnectionFailed — не удалось подключиться к брокеру за отведённые попытки.
	ErrConnectionFailed = errors.New("rabbitmq connection failed")

	// ErrConnectionLost — брокер закрыл соединение или канал доставки.
	ErrConnectionLost = errors.New("rabbitmq connection lost")

	// ErrNotConfirmed — брокер ответил nack на публикацию.
	ErrNotConfirmed = errors.New("publish not confirmed by broker")

	// ErrDrop — сообщение нужно отбросить без повторной доставки
	// (например, некорректный JSON).
	ErrDrop = errors.New("drop message")
)
