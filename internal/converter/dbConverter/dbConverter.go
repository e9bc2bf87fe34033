package dbConverter

import (
	"github.com/KotFed0t/papertrade/internal/model"
	"github.com/KotFed0t/papertrade/internal/model/dbModel"
)

func ConvertPosition(dbPosition dbModel.Position) model.Position {
	return model.Position{
		Symbol:   dbPosition.Symbol,
		Name:     dbPosition.Name,
		Shares:   dbPosition.Shares,
		Price:    dbPosition.Price,
		Total:    dbPosition.Total,
		DtUpdate: dbPosition.DtUpdate,
	}
}

func ConvertHistoryEntry(dbEntry dbModel.HistoryEntry) model.HistoryEntry {
	return model.HistoryEntry{
		ID:       dbEntry.HistoryID,
		Symbol:   dbEntry.Symbol,
		Name:     dbEntry.Name,
		Shares:   dbEntry.Shares,
		Price:    dbEntry.Price,
		DtCreate: dbEntry.DtCreate,
	}
}

func ConvertUser(dbUser dbModel.User) model.User {
	return model.User{
		UserID:   dbUser.UserID,
		Username: dbUser.Username,
		Hash:     dbUser.Hash,
		Cash:     dbUser.Cash,
		DtCreate: dbUser.DtCreate,
	}
}
