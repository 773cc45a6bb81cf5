package dto_test

import (
	"strings"
	"testing"

	"github.com/bionicotaku/lingo-services-coursevideo/internal/controllers/dto"
	"github.com/bionicotaku/lingo-services-coursevideo/internal/services"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/stretchr/testify/require"
)

type body struct {
	Filename string `json:"filename"`
}

func TestDecodeStrict_RejectsMalformedBodies(t *testing.T) {
	cases := map[string]string{
		"empty":           "",
		"unknown_field":   `{"filename":"a.mp4","extra":1}`,
		"trailing_brace":  `{"filename":"a.mp4"}}`,
		"trailing_square": `{"filename":"a.mp4"}]`,
		"second_object":   `{"filename":"a.mp4"} {}`,
		"trailing_text":   `{"filename":"a.mp4"} x`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			var dst body
			err := dto.DecodeStrict(strings.NewReader(raw), &dst)
			require.Error(t, err)
			se := kerrors.FromError(err)
			require.EqualValues(t, 400, se.Code)
			require.Equal(t, services.ReasonValidationFailed, se.Reason)
		})
	}
}

func TestDecodeStrict_AcceptsTrailingWhitespace(t *testing.T) {
	var dst body
	require.NoError(t, dto.DecodeStrict(strings.NewReader("{\"filename\":\"a.mp4\"}\n \t"), &dst))
	require.Equal(t, "a.mp4", dst.Filename)
}

func TestDecodeStrict_NilBody(t *testing.T) {
	var dst body
	err := dto.DecodeStrict(nil, &dst)
	require.Equal(t, services.ReasonValidationFailed, kerrors.FromError(err).Reason)
}
