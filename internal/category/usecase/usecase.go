package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fekuna/omnipos-sales-service/internal/apperror"
	"github.com/fekuna/omnipos-sales-service/internal/category"
	"github.com/fekuna/omnipos-sales-service/internal/category/dto"
	"github.com/fekuna/omnipos-sales-service/internal/model"
	"github.com/fekuna/omnipos-sales-service/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type categoryUseCase struct {
	repo   category.Repository
	logger logger.ZapLogger
}

func NewCategoryUseCase(repo category.Repository, log logger.ZapLogger) category.UseCase {
	return &categoryUseCase{
		repo:   repo,
		logger: log,
	}
}

func (uc *categoryUseCase) EnsureCategory(ctx context.Context, input *dto.EnsureCategoryInput) (*model.Category, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperror.NewValidation("category.name", "is required")
	}
	if len([]rune(name)) > 100 {
		return nil, apperror.NewValidation("category.name", "must be at most 100 characters")
	}

	existing, err := uc.repo.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	cat := &model.Category{
		BaseModel: model.BaseModel{
			ID:        uuid.New().String(),
			CreatedAt: time.Now(),
		},
		Name: name,
	}

	err = uc.repo.Create(ctx, cat)
	if errors.Is(err, apperror.ErrDuplicateKey) {
		// Created by a concurrent seed run.
		existing, err = uc.repo.FindByName(ctx, name)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, fmt.Errorf("category %q vanished after duplicate insert", name)
		}
		return existing, nil
	}
	if err != nil {
		return nil, err
	}

	uc.logger.Info("Category created", zap.String("category_id", cat.ID), zap.String("name", name))
	return cat, nil
}
