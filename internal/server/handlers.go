package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleecekm/fleeceqa/internal/llm"
	"github.com/fleecekm/fleeceqa/internal/pipeline"
	"github.com/fleecekm/fleeceqa/internal/questions"
	"github.com/fleecekm/fleeceqa/internal/store"
)

const maxRandomSamples = 100

func (s *Server) internalError(c *gin.Context, err error) {
	s.logger.Error("request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	fail(c, http.StatusInternalServerError, "internal server error")
}

func pathID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id < 1 {
		badRequest(c, "id must be a positive integer")
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string, def int) (int, bool) {
	v := c.Query(name)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		badRequest(c, name+" must be an integer")
		return 0, false
	}
	return n, true
}

func (s *Server) countParagraphs(c *gin.Context) {
	ctx := c.Request.Context()
	total, err := s.store.CountParagraphs(ctx)
	if err != nil {
		s.internalError(c, err)
		return
	}
	unprocessed, err := s.store.CountUnprocessedParagraphs(ctx)
	if err != nil {
		s.internalError(c, err)
		return
	}
	questionCount, err := s.store.CountQuestions(ctx)
	if err != nil {
		s.internalError(c, err)
		return
	}
	ok(c, gin.H{"paragraphs": total, "unprocessed": unprocessed, "questions": questionCount})
}

func (s *Server) randomParagraphs(c *gin.Context) {
	n, valid := queryInt(c, "n", 1)
	if !valid {
		return
	}
	if n < 1 || n > maxRandomSamples {
		badRequest(c, "n must be between 1 and 100")
		return
	}
	ps, err := s.store.RandomParagraphs(c.Request.Context(), n)
	if err != nil {
		s.internalError(c, err)
		return
	}
	ok(c, nonNil(ps))
}

func (s *Server) getParagraph(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	p, err := s.store.GetParagraph(c.Request.Context(), id)
	if err != nil {
		s.internalError(c, err)
		return
	}
	if p == nil {
		notFound(c, "paragraph not found")
		return
	}
	ok(c, p)
}

// getPage returns the paragraphs of one page. index defaults to -1, a
// random page.
func (s *Server) getPage(c *gin.Context) {
	index, valid := queryInt(c, "index", -1)
	if !valid {
		return
	}
	ps, err := s.store.PageParagraphs(c.Request.Context(), index)
	if err != nil {
		s.internalError(c, err)
		return
	}
	if ps == nil {
		notFound(c, "page not found")
		return
	}
	ok(c, ps)
}

func (s *Server) paragraphIDQuery(c *gin.Context) (int, bool) {
	id, valid := queryInt(c, "paragraph_id", 0)
	if !valid {
		return 0, false
	}
	if id < 1 {
		badRequest(c, "paragraph_id is required")
		return 0, false
	}
	return id, true
}

func (s *Server) listQuestions(c *gin.Context) {
	id, valid := s.paragraphIDQuery(c)
	if !valid {
		return
	}
	qs, err := s.store.QuestionsByParagraph(c.Request.Context(), id)
	if err != nil {
		s.internalError(c, err)
		return
	}
	ok(c, nonNil(qs))
}

func (s *Server) getQuestion(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	q, err := s.store.GetQuestion(c.Request.Context(), id)
	if err != nil {
		s.internalError(c, err)
		return
	}
	if q == nil {
		notFound(c, "question not found")
		return
	}
	ok(c, q)
}

func (s *Server) listRejected(c *gin.Context) {
	id, valid := s.paragraphIDQuery(c)
	if !valid {
		return
	}
	rs, err := s.store.RejectedQuestionsByParagraph(c.Request.Context(), id)
	if err != nil {
		s.internalError(c, err)
		return
	}
	ok(c, nonNil(rs))
}

// generateQuestions runs generation for one unprocessed paragraph and
// marks it processed, exactly as the batch driver would.
func (s *Server) generateQuestions(c *gin.Context) {
	if s.generator == nil {
		fail(c, http.StatusServiceUnavailable, "generation is not configured")
		return
	}
	id, valid := pathID(c)
	if !valid {
		return
	}
	mode := s.mode
	if m := c.Query("mode"); m != "" {
		mode = pipeline.Mode(m)
	}
	cfg := pipeline.Config{Mode: mode, Order: pipeline.OrderSequential}
	if err := cfg.Validate(); err != nil {
		badRequest(c, err.Error())
		return
	}

	s.genMu.Lock()
	defer s.genMu.Unlock()

	ctx := c.Request.Context()
	p, err := s.store.GetParagraph(ctx, id)
	if err != nil {
		s.internalError(c, err)
		return
	}
	if p == nil {
		notFound(c, "paragraph not found")
		return
	}
	if p.Processed != store.Unprocessed {
		fail(c, http.StatusConflict, "paragraph already processed")
		return
	}

	ids, err := pipeline.New(s.store, s.generator, cfg, s.logger).ProcessParagraph(ctx, *p)
	if err != nil {
		var failed *llm.ErrRequestFailed
		var malformed *questions.MalformedAnswerError
		if errors.As(err, &failed) || errors.As(err, &malformed) {
			s.logger.Warn("generation failed", zap.Int("paragraph_id", id), zap.Error(err))
			fail(c, http.StatusBadGateway, err.Error())
			return
		}
		s.internalError(c, err)
		return
	}

	created(c, gin.H{"paragraph_id": id, "mode": mode, "question_ids": nonNil(ids)})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
