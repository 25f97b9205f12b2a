package ports

import "context"

// Logger - минимальный контракт логгера для внешних слоёв.
// Реализация может дополнять сообщение метаданными из ctx (request_id, координаты записи).
type Logger interface {
	Infof(ctx context.Context, format string, args ...any)  // Infof - информационные сообщения.
	Warnf(ctx context.Context, format string, args ...any)  // Warnf - предупреждения.
	Errorf(ctx context.Context, format string, args ...any) // Errorf - ошибки.
}
