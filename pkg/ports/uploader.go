package ports

import "context"

// LogUploader delivers a batch of formatted log records to the engine.
type LogUploader interface {
	Upload(ctx context.Context, content []byte) error
}

// LogUploaderFunc adapts a function to LogUploader.
type LogUploaderFunc func(ctx context.Context, content []byte) error

// Upload calls f.
func (f LogUploaderFunc) Upload(ctx context.Context, content []byte) error {
	return f(ctx, content)
}
