package services

import (
	"context"

	"github.com/lordwilsonDev/transparency-log/repositories"
	"github.com/lordwilsonDev/transparency-log/signer"
)

// Services holds all service instances
type Services struct {
	Ledger LedgerService
}

// NewServices creates and initializes all service instances
func NewServices(ctx context.Context, repos *repositories.Repositories, sgn signer.Signer) (*Services, error) {
	ledger, err := NewLedgerService(ctx, repos.Log, sgn)
	if err != nil {
		return nil, err
	}

	return &Services{
		Ledger: ledger,
	}, nil
}
