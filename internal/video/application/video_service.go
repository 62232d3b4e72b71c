package application

import (
	"context"

	"go.uber.org/zap"

	videoDomain "github.com/davicafu/vidflow/internal/video/domain"
)

// VideoService expone las lecturas operacionales del catálogo (estado actual
// e histórico). Las mutaciones llegan por eventos, no por HTTP.
type VideoService struct {
	repo videoDomain.VideoRepository
	log  *zap.Logger
}

func NewVideoService(repo videoDomain.VideoRepository, log *zap.Logger) *VideoService {
	return &VideoService{repo: repo, log: log}
}

func (s *VideoService) GetVideo(ctx context.Context, id int64) (*videoDomain.Video, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *VideoService) StatusHistory(ctx context.Context, id int64) ([]videoDomain.StatusLog, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.StatusHistory(ctx, id)
}
