// Package remote tracks the state of catalog requests.
package remote

type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Response is the tagged state of one request: Data is set only on success
// and Message only on error.
type Response[T any] struct {
	Status  Status `json:"status"`
	Data    T      `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func Idle[T any]() Response[T] {
	return Response[T]{Status: StatusIdle}
}

func Loading[T any]() Response[T] {
	return Response[T]{Status: StatusLoading}
}

func Success[T any](data T) Response[T] {
	return Response[T]{Status: StatusSuccess, Data: data}
}

func Failure[T any](message string) Response[T] {
	return Response[T]{Status: StatusError, Message: message}
}

func (r Response[T]) IsLoading() bool {
	return r.Status == StatusLoading
}

func (r Response[T]) OK() bool {
	return r.Status == StatusSuccess
}
