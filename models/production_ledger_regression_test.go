package models_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"bitbucket.org/mmdatafocus/factory_backend/models"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"github.com/shopspring/decimal"
)

const (
	testCompanyId = 1
	testUserId    = 11
)

var seedSeq int

// seedLedger creates an employee, machine, work order, and an active group +
// schedule ready to receive quantity updates. Returns the group id.
func seedLedger(t *testing.T, ctx context.Context, groupQty int64) int {
	t.Helper()
	seedSeq++

	employee, err := models.GetEmployeeByUser(ctx, testCompanyId, testUserId)
	if err != nil {
		employee, err = models.CreateEmployee(ctx, &models.NewEmployee{
			UserId: testUserId,
			Name:   "Test Operator",
			Phone:  "+959790000001",
		})
		if err != nil {
			t.Fatalf("seed employee: %v", err)
		}
	}

	machine, err := models.CreateMachine(ctx, &models.NewMachine{
		MachineGenerateId: fmt.Sprintf("MC-%06d", seedSeq),
		Name:              fmt.Sprintf("Test Machine %d", seedSeq),
	})
	if err != nil {
		t.Fatalf("seed machine: %v", err)
	}

	workOrder, err := models.CreateWorkOrder(ctx, &models.NewWorkOrder{
		WorkGenerateId:     fmt.Sprintf("WO-%06d", seedSeq),
		SkuName:            "TEST-SKU",
		Priority:           "High",
		WorkOrderSkuValues: `[{"layer_id": 1, "layer_name": "Base", "qty": 100}]`,
	})
	if err != nil {
		t.Fatalf("seed work order: %v", err)
	}

	group, err := models.CreateProductionGroup(ctx, &models.NewProductionGroup{
		GroupQty:   decimal.NewFromInt(groupQty),
		GroupValue: fmt.Sprintf(`[{"work_order_id": %d, "layer_id": 1}]`, workOrder.ID),
	})
	if err != nil {
		t.Fatalf("seed production group: %v", err)
	}

	if _, err := models.CreateProductionSchedule(ctx, &models.NewProductionSchedule{
		ProductionGroupId: group.ID,
		EmployeeId:        employee.ID,
		MachineId:         machine.ID,
	}); err != nil {
		t.Fatalf("seed production schedule: %v", err)
	}

	return group.ID
}

func fetchGroup(t *testing.T, ctx context.Context, groupId int) *models.ProductionGroup {
	t.Helper()
	var group models.ProductionGroup
	err := config.GetDB().WithContext(ctx).Where("id = ?", groupId).First(&group).Error
	if err != nil {
		t.Fatalf("fetch group %d: %v", groupId, err)
	}
	return &group
}

func applyQty(ctx context.Context, groupId int, qty int64) (*models.GroupQuantityResult, error) {
	return models.ApplyManufacturedQuantity(ctx, groupId, &models.UpdateGroupQuantityInput{
		ManufacturedQuantity: decimal.NewFromInt(qty),
	})
}

func TestProductionLedgerRegression(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run (requires docker)")
	}

	mysqlName, mysqlPort := startMySQLContainer(t)
	defer dockerRmForce(mysqlName)
	redisName, redisPort := startRedisContainer(t)
	defer dockerRmForce(redisName)

	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "factory_test")
	t.Setenv("REDIS_ADDRESS", "127.0.0.1:"+redisPort)

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx := context.Background()
	ctx = utils.SetCompanyIdInContext(ctx, testCompanyId)
	ctx = utils.SetUserIdInContext(ctx, testUserId)
	ctx = utils.SetUserNameInContext(ctx, "Test")

	t.Run("partial consumption then completion", func(t *testing.T) {
		groupId := seedLedger(t, ctx, 100)

		result, err := applyQty(ctx, groupId, 40)
		if err != nil {
			t.Fatalf("apply 40: %v", err)
		}
		if !result.TotalManufactured.Equal(decimal.NewFromInt(40)) ||
			!result.BalancedQuantity.Equal(decimal.NewFromInt(60)) {
			t.Fatalf("after 40: got total=%s balance=%s; want 40/60",
				result.TotalManufactured, result.BalancedQuantity)
		}

		group := fetchGroup(t, ctx, groupId)
		if group.ProductionCompleted != models.ProductionCompletedPending {
			t.Fatalf("group must stay Pending at balance 60; got %s", group.ProductionCompleted)
		}

		// Consuming the exact remaining balance flips the group to Completed.
		result, err = applyQty(ctx, groupId, 60)
		if err != nil {
			t.Fatalf("apply 60: %v", err)
		}
		if !result.BalancedQuantity.IsZero() {
			t.Fatalf("expected zero balance; got %s", result.BalancedQuantity)
		}

		group = fetchGroup(t, ctx, groupId)
		if group.ProductionCompleted != models.ProductionCompletedCompleted {
			t.Fatalf("group must be Completed at zero balance; got %s", group.ProductionCompleted)
		}
		if !group.ManufacturedQty.Add(group.BalanceManufactureQty).Equal(group.GroupQty) {
			t.Fatalf("ledger drifted: %s + %s != %s",
				group.ManufacturedQty, group.BalanceManufactureQty, group.GroupQty)
		}
	})

	t.Run("rejected update leaves no trace", func(t *testing.T) {
		groupId := seedLedger(t, ctx, 100)

		if _, err := applyQty(ctx, groupId, 40); err != nil {
			t.Fatalf("apply 40: %v", err)
		}

		_, err := applyQty(ctx, groupId, 61)
		var validation *utils.ValidationError
		if !errors.As(err, &validation) || validation.Msg != "exceeds balance" {
			t.Fatalf("expected validation error %q; got %v", "exceeds balance", err)
		}

		group := fetchGroup(t, ctx, groupId)
		if !group.ManufacturedQty.Equal(decimal.NewFromInt(40)) ||
			!group.BalanceManufactureQty.Equal(decimal.NewFromInt(60)) {
			t.Fatalf("rejected call changed state: total=%s balance=%s",
				group.ManufacturedQty, group.BalanceManufactureQty)
		}

		history, err := models.GetGroupHistory(ctx, groupId)
		if err != nil {
			t.Fatalf("get history: %v", err)
		}
		if len(history.ProductionHistories) != 1 {
			t.Fatalf("rejected call left a history row: got %d rows", len(history.ProductionHistories))
		}
	})

	t.Run("history reads newest first and sums to the target", func(t *testing.T) {
		groupId := seedLedger(t, ctx, 100)

		if _, err := applyQty(ctx, groupId, 40); err != nil {
			t.Fatalf("apply 40: %v", err)
		}
		// Ensure distinct created_at values so the ordering assertion is meaningful.
		time.Sleep(1100 * time.Millisecond)
		if _, err := applyQty(ctx, groupId, 60); err != nil {
			t.Fatalf("apply 60: %v", err)
		}

		history, err := models.GetGroupHistory(ctx, groupId)
		if err != nil {
			t.Fatalf("get history: %v", err)
		}
		if len(history.ProductionHistories) != 2 {
			t.Fatalf("expected 2 history rows; got %d", len(history.ProductionHistories))
		}
		first, second := history.ProductionHistories[0], history.ProductionHistories[1]
		if !first.GroupManufacturedQuantity.Equal(decimal.NewFromInt(60)) {
			t.Fatalf("newest row must come first; got %s", first.GroupManufacturedQuantity)
		}
		sum := first.GroupManufacturedQuantity.Add(second.GroupManufacturedQuantity)
		if !sum.Equal(decimal.NewFromInt(100)) {
			t.Fatalf("history deltas must sum to the target; got %s", sum)
		}
	})

	t.Run("concurrent writers: exactly one wins", func(t *testing.T) {
		groupId := seedLedger(t, ctx, 100)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = applyQty(ctx, groupId, 60)
			}(i)
		}
		wg.Wait()

		successes := 0
		for _, err := range errs {
			if err == nil {
				successes++
				continue
			}
			var validation *utils.ValidationError
			var conflict *utils.ConflictError
			if !errors.As(err, &validation) && !errors.As(err, &conflict) {
				t.Fatalf("loser must fail with a validation or conflict error; got %v", err)
			}
		}
		if successes != 1 {
			t.Fatalf("expected exactly one winner; got %d", successes)
		}

		group := fetchGroup(t, ctx, groupId)
		if group.ManufacturedQty.GreaterThan(group.GroupQty) {
			t.Fatalf("manufactured %s exceeds target %s", group.ManufacturedQty, group.GroupQty)
		}
		if !group.ManufacturedQty.Add(group.BalanceManufactureQty).Equal(group.GroupQty) {
			t.Fatalf("ledger drifted after race: %s + %s != %s",
				group.ManufacturedQty, group.BalanceManufactureQty, group.GroupQty)
		}
	})

	t.Run("idempotent replay returns the original outcome", func(t *testing.T) {
		groupId := seedLedger(t, ctx, 100)

		key := fmt.Sprintf("replay-%d", groupId)
		input := &models.UpdateGroupQuantityInput{
			ManufacturedQuantity: decimal.NewFromInt(40),
			IdempotencyKey:       &key,
		}
		first, err := models.ApplyManufacturedQuantity(ctx, groupId, input)
		if err != nil {
			t.Fatalf("first apply: %v", err)
		}
		replay, err := models.ApplyManufacturedQuantity(ctx, groupId, input)
		if err != nil {
			t.Fatalf("replay: %v", err)
		}
		if replay.GroupHistoryId != first.GroupHistoryId {
			t.Fatalf("replay must echo the original history row: %d vs %d",
				replay.GroupHistoryId, first.GroupHistoryId)
		}

		group := fetchGroup(t, ctx, groupId)
		if !group.ManufacturedQty.Equal(decimal.NewFromInt(40)) {
			t.Fatalf("replay double-applied: manufactured=%s", group.ManufacturedQty)
		}
	})

	t.Run("missing actor and schedule map to not-found", func(t *testing.T) {
		groupId := seedLedger(t, ctx, 100)

		strangerCtx := utils.SetCompanyIdInContext(context.Background(), testCompanyId)
		strangerCtx = utils.SetUserIdInContext(strangerCtx, 9999)
		_, err := applyQty(strangerCtx, groupId, 10)
		var notFound *utils.NotFoundError
		if !errors.As(err, &notFound) || notFound.Entity != "employee" {
			t.Fatalf("unknown user must yield employee not-found; got %v", err)
		}

		// A group without any active schedule rejects the write after the
		// balance checks pass.
		group, err := models.CreateProductionGroup(ctx, &models.NewProductionGroup{
			GroupQty: decimal.NewFromInt(50),
		})
		if err != nil {
			t.Fatalf("create unscheduled group: %v", err)
		}
		_, err = applyQty(ctx, group.ID, 10)
		if !errors.As(err, &notFound) || notFound.Entity != "schedule" {
			t.Fatalf("unscheduled group must yield schedule not-found; got %v", err)
		}
	})
}

/* docker helpers */

func startRedisContainer(t *testing.T) (string, string) {
	t.Helper()
	name := fmt.Sprintf("factory-test-redis-%d", time.Now().UnixNano())
	dockerRmForce(name)
	out, err := dockerRun("run", "-d", "--name", name, "-P", "redis:7-alpine")
	if err != nil {
		t.Fatalf("failed to start redis container: %v\n%s", err, out)
	}
	port := dockerHostPort(t, name, "6379/tcp")

	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		out, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil && strings.Contains(out, "PONG") {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	dockerRmForce(name)
	t.Fatalf("redis container did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (string, string) {
	t.Helper()
	name := fmt.Sprintf("factory-test-mysql-%d", time.Now().UnixNano())
	dockerRmForce(name)
	out, err := dockerRun("run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=factory_test",
		"-P", "mysql:8.0",
		"--default-authentication-plugin=mysql_native_password")
	if err != nil {
		t.Fatalf("failed to start mysql container: %v\n%s", err, out)
	}
	port := dockerHostPort(t, name, "3306/tcp")

	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		out, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-uroot", "-ptestpw")
		if err == nil && strings.Contains(out, "mysqld is alive") {
			// mysqladmin can answer before the server finishes its init restart.
			time.Sleep(3 * time.Second)
			return name, port
		}
		time.Sleep(time.Second)
	}
	dockerRmForce(name)
	t.Fatalf("mysql container did not become ready")
	return "", ""
}

func dockerHostPort(t *testing.T, name, containerPort string) string {
	t.Helper()
	out, err := dockerRun("port", name, containerPort)
	if err != nil {
		t.Fatalf("failed to resolve host port for %s: %v\n%s", name, err, out)
	}
	m := regexp.MustCompile(`:(\d+)`).FindStringSubmatch(out)
	if len(m) < 2 {
		t.Fatalf("unexpected docker port output: %q", out)
	}
	return m[1]
}

func dockerRmForce(name string) {
	_, _ = dockerRun("rm", "-f", name)
}

func dockerRun(args ...string) (string, error) {
	out, err := exec.Command("docker", args...).CombinedOutput()
	return string(out), err
}
