package repository

import "errors"

var (
	ErrNotFound         = errors.New("entity not found")
	ErrUpdateFailed     = errors.New("update failed")
	ErrDeleteFailed     = errors.New("delete failed")
	ErrAlreadyExists    = errors.New("entity already exists")
	ErrConnectionFailed = errors.New("database connection failed")
	ErrQueryFailed      = errors.New("database query failed")
)
