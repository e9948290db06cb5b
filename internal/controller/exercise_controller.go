package controller

import (
	"earninja_backend/internal/model"
	"earninja_backend/internal/music"
	"earninja_backend/internal/service"
	"earninja_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ExerciseController struct {
	Exercises *service.ExerciseService
	Audio     *service.AudioService
}

func NewExerciseController(exercises *service.ExerciseService, audioService *service.AudioService) *ExerciseController {
	return &ExerciseController{Exercises: exercises, Audio: audioService}
}

type AnswerView struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	LongName  string `json:"longName"`
	StartNote int    `json:"startNote"`
	NoteName  string `json:"noteName"`
	AudioURL  string `json:"audioUrl"`
	HasAudio  bool   `json:"hasAudio"`
}

type ScoreView struct {
	NumCorrect int    `json:"numCorrect"`
	NumTotal   int    `json:"numTotal"`
	Percentage string `json:"percentage"`
}

// QuestionView hides the correct answer until the question is answered.
type QuestionView struct {
	AudioURL        string       `json:"audioUrl"`
	IntervalType    string       `json:"intervalType"`
	IsAnswered      bool         `json:"isAnswered"`
	CorrectAnswerID *uint        `json:"correctAnswerId,omitempty"`
	Answers         []AnswerView `json:"answers"`
	Score           *ScoreView   `json:"score"`
}

type SettingsView struct {
	LowestOctave     int      `json:"lowestOctave"`
	HighestOctave    int      `json:"highestOctave"`
	IntervalType     int      `json:"intervalType"`
	AllowedIntervals []string `json:"allowedIntervals"`
}

func newScoreView(score *model.ExerciseScore) *ScoreView {
	if score == nil {
		return nil
	}
	return &ScoreView{
		NumCorrect: score.NumCorrect,
		NumTotal:   score.NumTotal,
		Percentage: score.PercentageString(),
	}
}

func newSettingsView(settings *model.ExerciseSettings) SettingsView {
	names := make([]string, 0, len(settings.AllowedIntervals))
	for _, i := range settings.AllowedIntervals {
		names = append(names, i.Name)
	}
	return SettingsView{
		LowestOctave:     settings.LowestOctave,
		HighestOctave:    settings.HighestOctave,
		IntervalType:     int(settings.IntervalType),
		AllowedIntervals: names,
	}
}

func (c *ExerciseController) answerView(instance *model.IntervalInstance) AnswerView {
	longName, err := music.LongName(instance.Interval.Name)
	if err != nil {
		longName = instance.Interval.Name
	}
	return AnswerView{
		ID:        instance.ID,
		Name:      instance.Interval.Name,
		LongName:  longName,
		StartNote: instance.StartNote,
		NoteName:  music.NoteName(instance.StartNote),
		AudioURL:  c.Audio.AudioURL(instance),
		HasAudio:  instance.HasAudio(),
	}
}

// exercise resolves the caller's exercise, creating it on first use.
func (c *ExerciseController) exercise(ctx *gin.Context) (*model.IntervalsExercise, bool) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return nil, false
	}
	exercise, err := c.Exercises.GetOrCreateExercise(ctx.Request.Context(), claims.UserID)
	if err != nil {
		respondError(ctx, err)
		return nil, false
	}
	return exercise, true
}

func (c *ExerciseController) questionView(ctx *gin.Context, exercise *model.IntervalsExercise) (*QuestionView, error) {
	reqCtx := ctx.Request.Context()

	answers, err := c.Exercises.Answers(reqCtx, exercise)
	if err != nil {
		return nil, err
	}
	score, err := c.Exercises.Score(reqCtx, exercise)
	if err != nil {
		return nil, err
	}

	view := &QuestionView{
		IsAnswered: exercise.IsAnswered,
		Answers:    make([]AnswerView, 0, len(answers)),
		Score:      newScoreView(score),
	}
	for i := range answers {
		instance := &answers[i].IntervalInstance
		view.Answers = append(view.Answers, c.answerView(instance))
		if exercise.QuestionID != nil && instance.ID == *exercise.QuestionID {
			// the question row may have been loaded before its audio was assigned
			view.AudioURL = c.Audio.AudioURL(instance)
			if t := int(instance.Interval.IntervalType); t < len(music.IntervalTypes) {
				view.IntervalType = music.IntervalTypes[t]
			}
		}
	}
	if exercise.IsAnswered {
		view.CorrectAnswerID = exercise.QuestionID
	}
	return view, nil
}

// GetChoices godoc
// @Summary Interval and interval type choices
// @Tags intervals
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=object}
// @Router /api/intervals/choices [get]
func (c *ExerciseController) GetChoices(ctx *gin.Context) {
	util.Success(ctx, gin.H{
		"intervals":     music.IntervalChoices(),
		"intervalTypes": music.IntervalTypeChoices(),
	})
}

// GetQuestion godoc
// @Summary Current question with its answers
// @Tags intervals
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=QuestionView}
// @Failure 404 {object} util.Response "no question yet"
// @Router /api/intervals/question [get]
func (c *ExerciseController) GetQuestion(ctx *gin.Context) {
	exercise, ok := c.exercise(ctx)
	if !ok {
		return
	}
	if exercise.QuestionID == nil {
		respondError(ctx, util.ErrNoActiveQuestion)
		return
	}

	view, err := c.questionView(ctx, exercise)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// NewQuestion godoc
// @Summary Generate a new question
// @Description Answers without audio are rendered inline or queued, depending on configuration.
// @Tags intervals
// @Produce json
// @Security ApiKeyAuth
// @Success 201 {object} util.Response{data=QuestionView}
// @Success 202 {object} util.Response{data=QuestionView} "audio is still being rendered"
// @Failure 502 {object} util.Response "audio rendering failed"
// @Router /api/intervals/questions [post]
func (c *ExerciseController) NewQuestion(ctx *gin.Context) {
	exercise, ok := c.exercise(ctx)
	if !ok {
		return
	}

	if _, err := c.Exercises.GenerateNewQuestion(ctx.Request.Context(), exercise); err != nil {
		respondError(ctx, err)
		return
	}
	if err := c.Exercises.SaveAudioFiles(ctx.Request.Context(), exercise); err != nil {
		respondError(ctx, err)
		return
	}

	view, err := c.questionView(ctx, exercise)
	if err != nil {
		respondError(ctx, err)
		return
	}
	for _, answer := range view.Answers {
		// queued renders have not finished yet
		if !answer.HasAudio {
			util.Accepted(ctx, view)
			return
		}
	}
	util.Created(ctx, view)
}

type SubmitAnswerRequest struct {
	AnswerID uint `json:"answerId" binding:"required"`
}

// SubmitAnswer godoc
// @Summary Answer the current question
// @Tags intervals
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body SubmitAnswerRequest true "chosen answer"
// @Success 200 {object} util.Response{data=object}
// @Failure 404 {object} util.Response "no question, or not one of its answers"
// @Failure 409 {object} util.Response "already answered"
// @Router /api/intervals/answers [post]
func (c *ExerciseController) SubmitAnswer(ctx *gin.Context) {
	var req SubmitAnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	exercise, ok := c.exercise(ctx)
	if !ok {
		return
	}

	result, err := c.Exercises.SubmitAnswer(ctx.Request.Context(), exercise, req.AnswerID)
	if err != nil {
		respondError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{
		"correct":         result.Correct,
		"correctAnswerId": result.CorrectAnswerID,
		"score":           newScoreView(result.Score),
	})
}

// GetSettings godoc
// @Summary Exercise settings
// @Tags intervals
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=SettingsView}
// @Router /api/intervals/settings [get]
func (c *ExerciseController) GetSettings(ctx *gin.Context) {
	exercise, ok := c.exercise(ctx)
	if !ok {
		return
	}

	settings, err := c.Exercises.Settings(ctx.Request.Context(), exercise)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, newSettingsView(settings))
}

// UpdateSettings godoc
// @Summary Replace exercise settings
// @Tags intervals
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body service.SettingsInput true "new settings"
// @Success 200 {object} util.Response{data=SettingsView}
// @Failure 400 {object} util.Response "invalid settings"
// @Router /api/intervals/settings [put]
func (c *ExerciseController) UpdateSettings(ctx *gin.Context) {
	var req service.SettingsInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	exercise, ok := c.exercise(ctx)
	if !ok {
		return
	}

	settings, err := c.Exercises.UpdateSettings(ctx.Request.Context(), exercise, req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, newSettingsView(settings))
}

// ResetSettings godoc
// @Summary Restore default settings
// @Tags intervals
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=SettingsView}
// @Router /api/intervals/settings/default [post]
func (c *ExerciseController) ResetSettings(ctx *gin.Context) {
	exercise, ok := c.exercise(ctx)
	if !ok {
		return
	}

	if err := c.Exercises.SetDefaultSettings(ctx.Request.Context(), exercise); err != nil {
		respondError(ctx, err)
		return
	}
	settings, err := c.Exercises.Settings(ctx.Request.Context(), exercise)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, newSettingsView(settings))
}

// GetScore godoc
// @Summary Current score
// @Tags intervals
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=ScoreView}
// @Router /api/intervals/score [get]
func (c *ExerciseController) GetScore(ctx *gin.Context) {
	exercise, ok := c.exercise(ctx)
	if !ok {
		return
	}

	score, err := c.Exercises.Score(ctx.Request.Context(), exercise)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, newScoreView(score))
}

// ResetScore godoc
// @Summary Reset the score to 0 of 0
// @Tags intervals
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=ScoreView}
// @Router /api/intervals/score/reset [post]
func (c *ExerciseController) ResetScore(ctx *gin.Context) {
	exercise, ok := c.exercise(ctx)
	if !ok {
		return
	}

	score, err := c.Exercises.ResetScore(ctx.Request.Context(), exercise)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, newScoreView(score))
}
