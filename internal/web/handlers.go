package web

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/conorfennell/knolstudy/internal/domain"
	"github.com/conorfennell/knolstudy/internal/grading"
	"github.com/conorfennell/knolstudy/internal/storage"
)

type reviewRequest struct {
	Difficulty domain.Difficulty `json:"difficulty" validate:"required,oneof=AGAIN HARD GOOD EASY"`
}

type reviewResponse struct {
	OK      bool   `json:"ok"`
	NextDue string `json:"nextDue"`
}

type answerRequest struct {
	Answer    *int `json:"answer" validate:"required,gte=0"`
	TimeSpent int  `json:"timeSpent" validate:"gte=0"`
}

type sourceRequest struct {
	Path string `json:"path" validate:"required"`
}

func (s *Server) handleGetDueCards(w http.ResponseWriter, r *http.Request) {
	deckID := mux.Vars(r)["deckID"]
	cards, err := s.db.DueCards(r.Context(), deckID, s.now())
	if err != nil {
		s.log.Error("failed to get due cards", zap.String("deck", deckID), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to get due cards")
		return
	}
	respondWithJSON(w, http.StatusOK, cards)
}

func (s *Server) handleGetDeckStats(w http.ResponseWriter, r *http.Request) {
	deckID := mux.Vars(r)["deckID"]
	stats, err := s.db.DeckStats(r.Context(), deckID, s.now())
	if err != nil {
		s.log.Error("failed to get deck stats", zap.String("deck", deckID), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to get deck stats")
		return
	}
	respondWithJSON(w, http.StatusOK, stats)
}

func (s *Server) handlePostReview(w http.ResponseWriter, r *http.Request) {
	cardID := mux.Vars(r)["cardID"]
	var req reviewRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := s.now()
	review := domain.Review{
		CardID:     cardID,
		Difficulty: req.Difficulty,
		ReviewedAt: now,
		NextDue:    s.schedule.NextDue(now, req.Difficulty),
	}
	if err := s.db.RecordReview(r.Context(), review); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Card not found")
			return
		}
		s.log.Error("failed to record review", zap.String("card", cardID), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to record review")
		return
	}
	respondWithJSON(w, http.StatusOK, reviewResponse{OK: true, NextDue: review.NextDue.UTC().Format(timeFormat)})
}

func (s *Server) handleGetLessonQuizzes(w http.ResponseWriter, r *http.Request) {
	lessonID := mux.Vars(r)["lessonID"]
	quizzes, err := s.db.QuizzesForLesson(r.Context(), lessonID)
	if err != nil {
		s.log.Error("failed to get lesson quizzes", zap.String("lesson", lessonID), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to get quizzes")
		return
	}
	if quizzes == nil {
		quizzes = []domain.VideoQuiz{}
	}
	respondWithJSON(w, http.StatusOK, quizzes)
}

func (s *Server) handlePostAnswer(w http.ResponseWriter, r *http.Request) {
	quizID := mux.Vars(r)["quizID"]
	var req answerRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	quiz, err := s.db.FindQuiz(r.Context(), quizID)
	if err != nil {
		s.log.Error("failed to find quiz", zap.String("quiz", quizID), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to find quiz")
		return
	}
	if quiz == nil {
		respondWithError(w, http.StatusNotFound, "Quiz not found")
		return
	}

	res, err := grading.Grade(quiz.QuizDefinition, *req.Answer)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	err = s.db.RecordAnswer(r.Context(), storage.Answer{
		QuizID:        quizID,
		Answer:        *req.Answer,
		IsCorrect:     res.IsCorrect,
		TimeSpent:     req.TimeSpent,
		PointsAwarded: res.PointsAwarded,
		AnsweredAt:    s.now(),
	})
	if err != nil {
		s.log.Error("failed to record answer", zap.String("quiz", quizID), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to record answer")
		return
	}
	respondWithJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetSources(w http.ResponseWriter, r *http.Request) {
	s.respondWithSources(w, r)
}

func (s *Server) handlePostSource(w http.ResponseWriter, r *http.Request) {
	if s.syncer == nil {
		respondWithError(w, http.StatusServiceUnavailable, "Source management is not available")
		return
	}
	var req sourceRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := s.syncer.AddSource(r.Context(), req.Path); err != nil {
		s.log.Error("failed to add source", zap.String("path", req.Path), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to add source")
		return
	}
	s.respondWithSources(w, r)
}

func (s *Server) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid source ID")
		return
	}
	if err := s.db.DeleteSource(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Source not found")
			return
		}
		s.log.Error("failed to delete source", zap.Int64("id", id), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to delete source")
		return
	}
	s.respondWithSources(w, r)
}

func (s *Server) handlePostSync(w http.ResponseWriter, r *http.Request) {
	if s.syncer == nil {
		respondWithError(w, http.StatusServiceUnavailable, "Sync is not available")
		return
	}
	reports, err := s.syncer.RunSync(r.Context())
	if err != nil {
		s.log.Error("sync failed", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Sync failed")
		return
	}
	for _, rep := range reports {
		for _, perr := range rep.Errors {
			s.log.Warn("sync skipped a file", zap.String("source", rep.Path), zap.Error(perr))
		}
	}
	s.respondWithSources(w, r)
}

func (s *Server) respondWithSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.db.GetAllSources(r.Context())
	if err != nil {
		s.log.Error("failed to get sources", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to get sources")
		return
	}
	if sources == nil {
		sources = []storage.Source{}
	}
	respondWithJSON(w, http.StatusOK, sources)
}
