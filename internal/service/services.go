package service

import (
	"log/slog"

	"github.com/easelhq/easel-api/internal/config"
	"github.com/easelhq/easel-api/internal/parts"
	"github.com/easelhq/easel-api/internal/provider"
	"github.com/easelhq/easel-api/internal/repository"
)

// Services bundles all service implementations.
type Services struct {
	Auth       *AuthService
	APIKey     *APIKeyService
	Balance    *BalanceService
	Generation *GenerationService
	Storage    *StorageService
}

// New wires up the service layer.
func New(cfg *config.Config, repos *repository.Repositories, providers *provider.Registry, logger *slog.Logger) (*Services, error) {
	storage, err := NewStorageService(cfg, logger)
	if err != nil {
		return nil, err
	}

	balance := NewBalanceService(repos, logger)
	assembler := parts.NewAssembler(parts.NewHTTPFetcher(), logger)

	return &Services{
		Auth:       NewAuthService(repos, cfg.SigningKey, cfg.SessionExpiry, logger),
		APIKey:     NewAPIKeyService(repos, logger),
		Balance:    balance,
		Generation: NewGenerationService(repos, balance, storage, providers, assembler, cfg.PresignExpiry, logger),
		Storage:    storage,
	}, nil
}
