package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	//PENDINGからの前方遷移のみ
	assert.True(t, CanTransition(OrderStatusPending, OrderStatusConfirmed))
	assert.True(t, CanTransition(OrderStatusPending, OrderStatusFailed))

	//終端状態からはどこへも動けない
	assert.False(t, CanTransition(OrderStatusConfirmed, OrderStatusFailed))
	assert.False(t, CanTransition(OrderStatusConfirmed, OrderStatusPending))
	assert.False(t, CanTransition(OrderStatusFailed, OrderStatusConfirmed))
	assert.False(t, CanTransition(OrderStatusFailed, OrderStatusPending))

	//後退も不可
	assert.False(t, CanTransition(OrderStatusPending, OrderStatusPending))
}
