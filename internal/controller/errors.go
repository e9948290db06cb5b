package controller

import (
	"earninja_backend/internal/audio"
	"earninja_backend/internal/music"
	"earninja_backend/internal/util"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

var badRequestErrors = []error{
	util.ErrInvalidOctaveRange,
	util.ErrOctaveOutOfRange,
	util.ErrInvalidIntervalType,
	util.ErrNoAllowedIntervals,
	music.ErrUnknownInterval,
}

var notFoundErrors = []error{
	util.ErrUserNotFound,
	util.ErrExerciseNotFound,
	util.ErrSettingsNotFound,
	util.ErrAnswerNotFound,
	util.ErrIntervalInstanceNotFound,
	util.ErrNoActiveQuestion,
	gorm.ErrRecordNotFound,
}

// respondError maps service errors onto HTTP responses.
func respondError(ctx *gin.Context, err error) {
	for _, target := range badRequestErrors {
		if errors.Is(err, target) {
			util.BadRequest(ctx, err.Error())
			return
		}
	}
	for _, target := range notFoundErrors {
		if errors.Is(err, target) {
			util.NotFound(ctx, err.Error())
			return
		}
	}

	switch {
	case errors.Is(err, util.ErrQuestionAlreadyAnswered), errors.Is(err, util.ErrEmailRegistered):
		util.Conflict(ctx, err.Error())
	case errors.Is(err, util.ErrInvalidCredentials):
		util.Error(ctx, http.StatusUnauthorized, err.Error())
	case errors.Is(err, audio.ErrSynthesizerFailed), errors.Is(err, audio.ErrEncoderFailed):
		ctx.Error(err)
		util.Error(ctx, http.StatusBadGateway, "audio rendering failed")
	default:
		ctx.Error(err)
		util.LogInternalError(ctx, err)
	}
}
