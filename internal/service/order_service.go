package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"flashmall-backend/internal/metrics"
	"flashmall-backend/internal/model"
	"flashmall-backend/internal/stock"
)

// 异步消息在重试通道上的最大投递次数，超过进死信
const maxDeliveryAttempts = 3

const attemptsHeader = "attempts"

// OrderService 下单编排：策略流水线 → 原子预占 → 持久化 → 善后
// 预占成功之后的任何失败都必须先回滚预占再向上传播
type OrderService struct {
	strategies map[model.OrderType]OrderStrategy
	ledger     Ledger
	orders     OrderStore
	ids        IDGenerator
	tracker    *PendingOrderTracker

	writer      *kafka.Writer
	retryWriter *kafka.Writer
	dlqWriter   *kafka.Writer
	reader      *kafka.Reader
	retryReader *kafka.Reader

	log *zap.Logger
}

func NewOrderService(
	strategies map[model.OrderType]OrderStrategy,
	ledger Ledger,
	orders OrderStore,
	ids IDGenerator,
	tracker *PendingOrderTracker,
	writer, retryWriter, dlqWriter *kafka.Writer,
	reader, retryReader *kafka.Reader,
	log *zap.Logger,
) *OrderService {
	if log == nil {
		log = zap.NewNop()
	}
	return &OrderService{
		strategies:  strategies,
		ledger:      ledger,
		orders:      orders,
		ids:         ids,
		tracker:     tracker,
		writer:      writer,
		retryWriter: retryWriter,
		dlqWriter:   dlqWriter,
		reader:      reader,
		retryReader: retryReader,
		log:         log,
	}
}

// Create 同步下单入口
func (s *OrderService) Create(ctx context.Context, d *OrderDraft) (*model.Order, error) {
	start := time.Now()
	order, err := s.create(ctx, d)
	status := "success"
	if err != nil {
		status = "failure"
	}
	metrics.RecordOrderCreated(d.OrderType.String(), status, time.Since(start).Seconds())
	return order, err
}

func (s *OrderService) create(ctx context.Context, d *OrderDraft) (*model.Order, error) {
	strategy, ok := s.strategies[d.OrderType]
	if !ok {
		return nil, fmt.Errorf("unknown order type %d", d.OrderType)
	}
	if d.TradeNo == "" {
		d.TradeNo = uuid.NewString()
	}

	// 校验/构建/核券阶段的任何失败都发生在预占之前，直接返回
	if err := strategy.Validate(ctx, d); err != nil {
		return nil, err
	}
	if err := strategy.BuildDraft(ctx, d); err != nil {
		return nil, err
	}
	if err := strategy.ApplyCoupon(ctx, d); err != nil {
		return nil, err
	}
	if err := strategy.AdjustPrice(ctx, d); err != nil {
		return nil, err
	}

	reservation, err := s.ledger.Reserve(ctx, strategy.ScopeKey(d), reservationItems(d))
	if err != nil {
		if errors.Is(err, ErrInsufficientStock) {
			metrics.StockReservations.WithLabelValues("insufficient").Inc()
		} else {
			metrics.StockReservations.WithLabelValues("error").Inc()
		}
		return nil, err
	}
	metrics.StockReservations.WithLabelValues("reserved").Inc()

	// 此后任何失败都必须先把预占的数量还回账本
	orderID, err := s.ids.NextId(ctx, "order")
	if err != nil {
		s.rollback(ctx, reservation)
		return nil, err
	}
	order := d.buildOrder(orderID)
	if err := s.orders.CreateOrder(ctx, order); err != nil {
		s.rollback(ctx, reservation)
		return nil, err
	}
	if err := strategy.PostCreate(ctx, d, order); err != nil {
		s.rollback(ctx, reservation)
		return nil, err
	}

	s.log.Info("order created",
		zap.Int64("orderId", order.ID),
		zap.String("tradeNo", order.TradeNo),
		zap.String("type", d.OrderType.String()),
		zap.Int64("payAmount", order.PayAmount))
	return order, nil
}

// rollback 失败补偿；回滚自身出错只能记日志，账本以墓碑拒绝重复回滚
func (s *OrderService) rollback(ctx context.Context, reservation *stock.Reservation) {
	if err := s.ledger.Rollback(ctx, reservation); err != nil {
		s.log.Error("rollback reservation failed",
			zap.String("scope", reservation.Scope),
			zap.String("token", reservation.Token),
			zap.Error(err))
		return
	}
	metrics.StockReservations.WithLabelValues("rolled_back").Inc()
}

// SubmitAsync 异步下单：先登记处理中，再投递到 Kafka，由消费者执行创建
// 返回交易号供客户端轮询
func (s *OrderService) SubmitAsync(ctx context.Context, d *OrderDraft) (string, error) {
	if s.writer == nil {
		return "", errors.New("async order channel not configured")
	}
	if d.TradeNo == "" {
		d.TradeNo = uuid.NewString()
	}
	if err := s.tracker.MarkProcessing(ctx, d.TradeNo, d); err != nil {
		return "", err
	}
	data, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	msg := kafka.Message{Key: []byte(d.TradeNo), Value: data}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		// 投递失败时尽量把状态改回失败，避免客户端一直轮询 processing
		_ = s.tracker.MarkFailed(ctx, d.TradeNo, "提交失败，请重试")
		return "", err
	}
	return d.TradeNo, nil
}

// GetPendingStatus 轮询异步下单进度
func (s *OrderService) GetPendingStatus(ctx context.Context, tradeNo string) (PendingOrderRecord, error) {
	return s.tracker.GetStatus(ctx, tradeNo)
}

// RunConsumer 主题消费循环；ctx 取消后返回
func (s *OrderService) RunConsumer(ctx context.Context) error {
	return s.consumeLoop(ctx, s.reader)
}

// RunRetryConsumer 重试主题消费循环
func (s *OrderService) RunRetryConsumer(ctx context.Context) error {
	return s.consumeLoop(ctx, s.retryReader)
}

func (s *OrderService) consumeLoop(ctx context.Context, reader *kafka.Reader) error {
	if reader == nil {
		return errors.New("kafka reader not configured")
	}
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		s.handleMessage(ctx, msg)
		if err := reader.CommitMessages(ctx, msg); err != nil {
			s.log.Warn("commit offset failed", zap.Error(err))
		}
	}
}

// handleMessage 消费一条异步下单消息
// 瞬时失败走重试主题，毒消息进死信；处理方整体幂等依赖交易号与预占凭证
func (s *OrderService) handleMessage(ctx context.Context, msg kafka.Message) {
	var draft OrderDraft
	if err := json.Unmarshal(msg.Value, &draft); err != nil {
		s.log.Error("malformed order message", zap.Error(err))
		s.toDLQ(ctx, msg, "malformed payload")
		return
	}

	_, err := s.Create(ctx, &draft)
	if err == nil {
		if markErr := s.tracker.MarkCreated(ctx, draft.TradeNo); markErr != nil {
			s.log.Warn("mark created failed", zap.String("tradeNo", draft.TradeNo), zap.Error(markErr))
		}
		return
	}

	if IsRetryable(err) {
		attempts := deliveryAttempts(msg) + 1
		if attempts < maxDeliveryAttempts && s.retryWriter != nil {
			retryMsg := kafka.Message{
				Key:     msg.Key,
				Value:   msg.Value,
				Headers: []kafka.Header{{Key: attemptsHeader, Value: []byte(strconv.Itoa(attempts))}},
			}
			if werr := s.retryWriter.WriteMessages(ctx, retryMsg); werr == nil {
				return
			}
			s.log.Warn("republish to retry topic failed", zap.String("tradeNo", draft.TradeNo))
		}
	}

	if markErr := s.tracker.MarkFailed(ctx, draft.TradeNo, err.Error()); markErr != nil {
		s.log.Warn("mark failed failed", zap.String("tradeNo", draft.TradeNo), zap.Error(markErr))
	}
	if !IsDomainError(err) {
		// 非业务错误留档死信，便于审计
		s.toDLQ(ctx, msg, err.Error())
	}
}

func (s *OrderService) toDLQ(ctx context.Context, msg kafka.Message, reason string) {
	if s.dlqWriter == nil {
		return
	}
	dlqMsg := kafka.Message{
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: []kafka.Header{{Key: "reason", Value: []byte(reason)}},
	}
	if err := s.dlqWriter.WriteMessages(ctx, dlqMsg); err != nil {
		s.log.Error("write to dlq failed", zap.Error(err))
	}
}

func deliveryAttempts(msg kafka.Message) int {
	for _, h := range msg.Headers {
		if h.Key == attemptsHeader {
			if n, err := strconv.Atoi(string(h.Value)); err == nil {
				return n
			}
		}
	}
	return 0
}
