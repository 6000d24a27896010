package middlewares

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"bitbucket.org/mmdatafocus/factory_backend/models"
	"github.com/gin-gonic/gin"
	"github.com/graph-gophers/dataloader/v7"
	"gorm.io/gorm"
)

type ctxKey string

const (
	loadersKey = ctxKey("dataloaders")
)

// Loaders wrap your data loaders to inject via middleware
type Loaders struct {
	employeeLoader  *dataloader.Loader[int, *models.Employee]
	machineLoader   *dataloader.Loader[int, *models.Machine]
	workOrderLoader *dataloader.Loader[int, *models.WorkOrder]
}

// NewLoaders instantiates data loaders for the middleware
func NewLoaders(conn *gorm.DB) *Loaders {
	// define the data loader
	employeeReader := &employeeReader{db: conn}
	machineReader := &machineReader{db: conn}
	workOrderReader := &workOrderReader{db: conn}

	return &Loaders{
		employeeLoader:  dataloader.NewBatchedLoader(employeeReader.getEmployees, dataloader.WithWait[int, *models.Employee](time.Millisecond)),
		machineLoader:   dataloader.NewBatchedLoader(machineReader.getMachines, dataloader.WithWait[int, *models.Machine](time.Millisecond)),
		workOrderLoader: dataloader.NewBatchedLoader(workOrderReader.getWorkOrders, dataloader.WithWait[int, *models.WorkOrder](time.Millisecond)),
	}
}

func LoaderMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		loader := NewLoaders(config.GetDB())
		ctx := context.WithValue(c.Request.Context(), loadersKey, loader)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func For(ctx context.Context) *Loaders {
	return ctx.Value(loadersKey).(*Loaders)
}

// handleError creates array of result with the same error repeated for as many items requested
func handleError[T any](itemsLength int, err error) []*dataloader.Result[T] {
	result := make([]*dataloader.Result[T], itemsLength)
	for i := 0; i < itemsLength; i++ {
		result[i] = &dataloader.Result[T]{Error: err}
	}
	return result
}
