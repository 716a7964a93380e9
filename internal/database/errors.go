package database

import "errors"

var ErrWriteQueueFull = errors.New("write queue is full")
