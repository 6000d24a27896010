package middlewares

import (
	"context"

	"bitbucket.org/mmdatafocus/factory_backend/models"
	"github.com/graph-gophers/dataloader/v7"
	"gorm.io/gorm"
)

type workOrderReader struct {
	db *gorm.DB
}

func (r *workOrderReader) getWorkOrders(ctx context.Context, ids []int) []*dataloader.Result[*models.WorkOrder] {
	var results []models.WorkOrder
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&results).Error
	if err != nil {
		return handleError[*models.WorkOrder](len(ids), err)
	}

	resultMap := make(map[int]*models.WorkOrder)
	for i := range results {
		resultMap[results[i].ID] = &results[i]
	}

	loaderResults := make([]*dataloader.Result[*models.WorkOrder], 0, len(ids))
	for _, id := range ids {
		loaderResults = append(loaderResults, &dataloader.Result[*models.WorkOrder]{Data: resultMap[id]})
	}
	return loaderResults
}

func GetWorkOrder(ctx context.Context, id int) (*models.WorkOrder, error) {
	loaders := For(ctx)
	return loaders.workOrderLoader.Load(ctx, id)()
}

func GetWorkOrders(ctx context.Context, ids []int) ([]*models.WorkOrder, []error) {
	loaders := For(ctx)
	return loaders.workOrderLoader.LoadMany(ctx, ids)()
}
