package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BerniceZTT/crm_stats/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	// 集合名
	CustomersCollection        = "customers"
	FollowUpCollection         = "followUpRecords"
	ActivityPulsesCollection   = "activityPulses"
	DailyReportsCollection     = "dailyReports"
	OutreachEmailsCollection   = "outreachEmails"
	ShopsCollection            = "shops"
	ShipmentsCollection        = "shipments"
	InvoicesCollection         = "invoices"
	InventoryRecordsCollection = "inventory_records"
	CommunicationsCollection   = "communications"
	SystemConfigsCollection    = "systemConfigs"
	AdviceDismissalsCollection = "adviceDismissals"
)

var client *mongo.Client

// InitMongoDB 初始化MongoDB连接
func InitMongoDB(ctx context.Context, uri, dbName string) (*mongo.Database, error) {
	// 设置连接超时
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var err error
	clientOptions := options.Client().ApplyURI(uri)
	client, err = mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("连接MongoDB失败: %w", err)
	}

	// 检查连接
	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("ping MongoDB失败: %w", err)
	}

	utils.Logger.Info().Str("database", dbName).Msg("已连接到MongoDB")
	return client.Database(dbName), nil
}

// CloseMongoDB 关闭MongoDB连接
func CloseMongoDB(ctx context.Context) {
	if client != nil {
		if err := client.Disconnect(ctx); err != nil {
			utils.Logger.Error().Err(err).Msg("断开MongoDB连接失败")
			return
		}
		utils.Logger.Info().Msg("已断开MongoDB连接")
	}
}

// PingMongoDB 健康检查
func PingMongoDB(ctx context.Context) error {
	if client == nil {
		return errors.New("MongoDB未连接")
	}
	return client.Ping(ctx, readpref.Primary())
}

// EnsureIndexes 创建统计查询与忽略记录所需的索引
func EnsureIndexes(ctx context.Context, database *mongo.Database) error {
	for kind, schema := range DefaultSchemas() {
		model := mongo.IndexModel{Keys: bson.D{{Key: schema.OwnerField, Value: 1}, {Key: schema.TimeField, Value: 1}}}
		if _, err := database.Collection(schema.Collection).Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("创建索引失败 (%s): %w", kind, err)
		}
	}
	dismissal := mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "key", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := database.Collection(AdviceDismissalsCollection).Indexes().CreateOne(ctx, dismissal); err != nil {
		return fmt.Errorf("创建忽略记录索引失败: %w", err)
	}
	return nil
}

// ExecuteDbOperation 执行数据库操作，可重试的错误按递增间隔重试
func ExecuteDbOperation[T any](ctx context.Context, operation func(ctx context.Context) (T, error), retries int) (T, error) {
	if retries <= 0 {
		retries = 1
	}

	var zero T
	var lastErr error
	for i := 0; i < retries; i++ {
		result, err := operation(ctx)
		if err == nil {
			return result, nil
		}

		lastErr = err
		if !isRetryableError(err) || i == retries-1 {
			break
		}
		utils.Logger.Warn().Err(err).Msgf("数据库操作失败，重试 (%d/%d)", i+1, retries)

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(time.Duration(100*(i+1)) * time.Millisecond):
		}
	}

	return zero, lastErr
}

// isRetryableError 判断错误是否可重试
func isRetryableError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// MongoDB可重试错误代码
	retryableCodes := map[int32]bool{
		6:     true, // HostUnreachable
		7:     true, // HostNotFound
		89:    true, // NetworkTimeout
		91:    true, // ShutdownInProgress
		189:   true, // PrimarySteppedDown
		10107: true, // NotMaster
		13436: true, // NotMasterNoSlaveOk
		11600: true, // InterruptedAtShutdown
		11602: true, // InterruptedDueToReplStateChange
	}

	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		return retryableCodes[cmdErr.Code]
	}

	return isNetworkError(err)
}

// isNetworkError 检查是否是网络错误
func isNetworkError(err error) bool {
	if mongo.IsNetworkError(err) {
		return true
	}
	errMsg := strings.ToLower(err.Error())
	networkErrors := []string{
		"connection refused",
		"connection reset",
		"connection closed",
		"no reachable servers",
		"server selection error",
	}

	for _, ne := range networkErrors {
		if strings.Contains(errMsg, ne) {
			return true
		}
	}

	return false
}
