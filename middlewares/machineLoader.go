package middlewares

import (
	"context"

	"bitbucket.org/mmdatafocus/factory_backend/models"
	"github.com/graph-gophers/dataloader/v7"
	"gorm.io/gorm"
)

type machineReader struct {
	db *gorm.DB
}

func (r *machineReader) getMachines(ctx context.Context, ids []int) []*dataloader.Result[*models.Machine] {
	var results []models.Machine
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&results).Error
	if err != nil {
		return handleError[*models.Machine](len(ids), err)
	}

	resultMap := make(map[int]*models.Machine)
	for i := range results {
		resultMap[results[i].ID] = &results[i]
	}

	loaderResults := make([]*dataloader.Result[*models.Machine], 0, len(ids))
	for _, id := range ids {
		loaderResults = append(loaderResults, &dataloader.Result[*models.Machine]{Data: resultMap[id]})
	}
	return loaderResults
}

func GetMachine(ctx context.Context, id int) (*models.Machine, error) {
	loaders := For(ctx)
	return loaders.machineLoader.Load(ctx, id)()
}

func GetMachines(ctx context.Context, ids []int) ([]*models.Machine, []error) {
	loaders := For(ctx)
	return loaders.machineLoader.LoadMany(ctx, ids)()
}
