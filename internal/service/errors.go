package service

import (
	"errors"

	"clubnet_backend/internal/util"
	"clubnet_backend/pkg/database"
)

// storageErr passes typed errors through and wraps everything else as Internal.
func storageErr(msg string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *util.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return util.Internal(msg, err)
}

// lookupErr maps a missing row to notFound.
func lookupErr(err error, notFound error, msg string) error {
	if database.IsNotFound(err) {
		return notFound
	}
	return storageErr(msg, err)
}

// conflictErr maps a unique violation to conflict.
func conflictErr(err error, conflict error, msg string) error {
	if database.IsUniqueViolation(err) {
		return conflict
	}
	return storageErr(msg, err)
}
