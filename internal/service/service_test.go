package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/restaurant-ordering/internal/apperr"
	"github.com/iliyamo/restaurant-ordering/internal/repository"
)

func TestStoreErr(t *testing.T) {
	cases := []struct {
		in   error
		want apperr.Kind
	}{
		{repository.ErrNotFound, apperr.KindNotFound},
		{fmt.Errorf("wrapped: %w", repository.ErrDuplicate), apperr.KindDuplicate},
		{repository.ErrVersionConflict, apperr.KindConflict},
		{repository.ErrConflict, apperr.KindConflict},
		{repository.ErrMissingReference, apperr.KindInvalid},
		{apperr.Forbidden("no"), apperr.KindForbidden},
		{errors.New("disk on fire"), apperr.KindInternal},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, apperr.KindOf(storeErr(c.in, "order")), c.in.Error())
	}
	assert.NoError(t, storeErr(nil, "order"))

	err := storeErr(errors.New("disk on fire"), "order")
	assert.Equal(t, "Something went very wrong!", err.(*apperr.Error).Message)
}

func TestCheckVersion(t *testing.T) {
	assert.NoError(t, checkVersion(nil, 3, "order"))
	v := uint64(3)
	assert.NoError(t, checkVersion(&v, 3, "order"))
	v = 2
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(checkVersion(&v, 3, "order")))
}

func TestNewPageNeverNil(t *testing.T) {
	p := newPage[int](nil, 0, repository.Pagination{})
	assert.NotNil(t, p.Items)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, repository.DefaultLimit, p.Limit)
}
