package repository

import (
	"testing"
)

func TestMemoryRepository(t *testing.T) {
	runRepositorySuite(t, func(t *testing.T) OrderRepository {
		return NewMemoryRepository()
	})
}
