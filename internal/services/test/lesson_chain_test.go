package services_test

import (
	"context"
	"io"
	"testing"

	"github.com/bionicotaku/lingo-services-coursevideo/internal/models/po"
	"github.com/bionicotaku/lingo-services-coursevideo/internal/services"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestVerifyLessonChain(t *testing.T) {
	owner := instructor()
	chain := &po.LessonChain{
		LessonID:     uuid.New(),
		ModuleID:     uuid.New(),
		CourseID:     uuid.New(),
		InstructorID: owner.ID,
	}
	verifier := services.NewLessonChainVerifier(&memLessonRepo{chains: map[uuid.UUID]*po.LessonChain{chain.LessonID: chain}}, log.NewStdLogger(io.Discard))
	ctx := context.Background()

	require.NoError(t, verifier.VerifyLessonChain(ctx, owner, chain.CourseID, chain.ModuleID, chain.LessonID))
	require.NoError(t, verifier.VerifyLessonChain(ctx, admin(), chain.CourseID, chain.ModuleID, chain.LessonID))

	cases := []struct {
		name   string
		actor  services.Actor
		course uuid.UUID
		module uuid.UUID
		lesson uuid.UUID
		code   int
		reason string
	}{
		{"student", student(), chain.CourseID, chain.ModuleID, chain.LessonID, 403, services.ReasonForbidden},
		{"foreign instructor", instructor(), chain.CourseID, chain.ModuleID, chain.LessonID, 403, services.ReasonForbidden},
		{"unknown lesson", owner, chain.CourseID, chain.ModuleID, uuid.New(), 404, services.ReasonLessonNotFound},
		{"wrong module", owner, chain.CourseID, uuid.New(), chain.LessonID, 400, services.ReasonValidationFailed},
		{"wrong course", owner, uuid.New(), chain.ModuleID, chain.LessonID, 400, services.ReasonValidationFailed},
		{"missing ids", owner, uuid.Nil, chain.ModuleID, chain.LessonID, 400, services.ReasonValidationFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := verifier.VerifyLessonChain(ctx, tc.actor, tc.course, tc.module, tc.lesson)
			requireReason(t, err, tc.code, tc.reason)
		})
	}
}

func TestParseRole(t *testing.T) {
	role, ok := services.ParseRole(" Admin ")
	require.True(t, ok)
	require.Equal(t, services.RoleAdmin, role)

	_, ok = services.ParseRole("owner")
	require.False(t, ok)
}
