package usecase

import (
	"context"
	"errors"

	"telehealth-booking/internal/converter"
	"telehealth-booking/internal/delivery/dto"
	"telehealth-booking/internal/domain/entity"
	"telehealth-booking/internal/domain/repository"
	"telehealth-booking/internal/infrastructure/database"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const walletHistoryLimit = 20

var ErrUnknownWalletOwner = errors.New("role has no wallet")

type WalletUsecase interface {
	// GetMyBalances returns the caller's balances and latest ledger entries.
	// Admins see the platform account.
	GetMyBalances(ctx context.Context, userID uuid.UUID, role string) (*dto.WalletResponse, error)
}

type walletUsecase struct {
	transactor  database.Transactor
	log         *logrus.Logger
	ledgerRepo  repository.LedgerRepository
	historyRepo repository.LedgerHistoryRepository
}

func NewWalletUsecase(
	transactor database.Transactor,
	log *logrus.Logger,
	ledgerRepo repository.LedgerRepository,
	historyRepo repository.LedgerHistoryRepository,
) WalletUsecase {
	return &walletUsecase{
		transactor:  transactor,
		log:         log,
		ledgerRepo:  ledgerRepo,
		historyRepo: historyRepo,
	}
}

func (u *walletUsecase) GetMyBalances(ctx context.Context, userID uuid.UUID, role string) (*dto.WalletResponse, error) {
	var owner entity.LedgerOwner
	switch role {
	case entity.RolePatient:
		owner = entity.PatientOwner(userID)
	case entity.RoleProvider:
		owner = entity.ProviderOwner(userID)
	case entity.RoleAdmin:
		owner = entity.PlatformOwner()
	default:
		return nil, ErrUnknownWalletOwner
	}

	db := u.transactor.DB(ctx)

	accounts, err := u.ledgerRepo.FindByOwner(db, owner)
	if err != nil {
		u.log.Warnf("Failed to find ledger accounts for %s %s: %+v", owner.Type, owner.ID, err)
		return nil, err
	}

	entries, err := u.historyRepo.FindByOwner(db, owner, walletHistoryLimit)
	if err != nil {
		u.log.Warnf("Failed to find ledger history for %s %s: %+v", owner.Type, owner.ID, err)
		return nil, err
	}

	return &dto.WalletResponse{
		OwnerType: string(owner.Type),
		OwnerID:   owner.ID,
		Balances:  converter.LedgerAccountsToBalances(accounts),
		Entries:   converter.LedgerEntriesToResponses(entries),
	}, nil
}
