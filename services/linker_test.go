package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFirstLinkedOwner(t *testing.T) {
	one := uint(1)
	two := uint(2)
	zero := uint(0)

	tests := []struct {
		name string
		uids []*uint
		want *uint
	}{
		{"empty list", nil, nil},
		{"all unlinked", []*uint{nil, nil}, nil},
		{"zero is not a link", []*uint{&zero, nil}, nil},
		{"first linked wins", []*uint{nil, &one, &two}, &one},
		{"skips zero before a real id", []*uint{&zero, &two}, &two},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := firstLinkedOwner(tc.uids)
			if tc.want == nil {
				assert.Nil(t, got)
			} else if assert.NotNil(t, got) {
				assert.Equal(t, *tc.want, *got)
			}
		})
	}
}
