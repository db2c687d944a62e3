package utils

import (
	"testing"

	"github.com/aarondl/null/v8"
	"github.com/stretchr/testify/assert"
)

type patchTarget struct {
	Name     string
	Count    int64
	Delivery null.String
	Note     *string
}

type patchSource struct {
	Name     *string     `json:"name,omitempty"`
	Count    *int64      `json:"count,omitempty"`
	Delivery null.String `json:"delivery,omitempty"`
	Note     *string     `json:"note,omitempty"`
}

func TestApplyUpdates(t *testing.T) {
	dst := patchTarget{Name: "старое", Count: 1}
	changed := ApplyUpdates(&dst, &patchSource{
		Name:     StringPtr("новое"),
		Delivery: null.StringFrom("D2B"),
	})

	assert.True(t, changed)
	assert.Equal(t, "новое", dst.Name)
	assert.Equal(t, int64(1), dst.Count, "неприсланное поле не трогается")
	assert.Equal(t, "D2B", dst.Delivery.String)
	assert.True(t, dst.Delivery.Valid)
	assert.Nil(t, dst.Note)
}

func TestApplyUpdatesNoChanges(t *testing.T) {
	dst := patchTarget{Name: "как есть", Delivery: null.StringFrom("D2B")}

	// Те же значения - изменений нет.
	changed := ApplyUpdates(&dst, &patchSource{
		Name:     StringPtr("как есть"),
		Delivery: null.StringFrom("D2B"),
	})
	assert.False(t, changed)

	// Пустой патч тем более.
	assert.False(t, ApplyUpdates(&dst, &patchSource{}))
}

func TestPatchFields(t *testing.T) {
	fields := PatchFields(&patchSource{
		Count:    Int64Ptr(5),
		Delivery: null.StringFrom("D2D"),
	})
	assert.ElementsMatch(t, []string{"count", "delivery"}, fields)

	// Невалидный null.String означает "не прислано".
	assert.Empty(t, PatchFields(&patchSource{Delivery: null.String{}}))
}
