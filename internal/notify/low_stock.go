package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// LowStockEvent 投递到告警 topic 的事件体
type LowStockEvent struct {
	Scope      string `json:"scope"`
	SkuID      int64  `json:"skuId"`
	Remaining  int64  `json:"remaining"`
	OccurredAt int64  `json:"occurredAt"`
}

// LowStockNotifier 将低库存信号发到 Kafka，配置了 SMTP 时同时发邮件
type LowStockNotifier struct {
	writer *kafka.Writer
	smtp   SMTPConfig
	log    *zap.Logger
}

func NewLowStockNotifier(writer *kafka.Writer, smtp SMTPConfig, log *zap.Logger) *LowStockNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &LowStockNotifier{writer: writer, smtp: smtp, log: log}
}

// LowStock 实现 stock.Notifier；由引擎在预占成功后异步调用
func (n *LowStockNotifier) LowStock(scope string, skuID, remaining int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	event := LowStockEvent{
		Scope:      scope,
		SkuID:      skuID,
		Remaining:  remaining,
		OccurredAt: time.Now().Unix(),
	}
	if n.writer != nil {
		data, err := json.Marshal(event)
		if err == nil {
			err = n.writer.WriteMessages(ctx, kafka.Message{
				Key:   []byte(fmt.Sprintf("%s:%d", scope, skuID)),
				Value: data,
			})
		}
		if err != nil {
			n.log.Warn("publish low stock event failed",
				zap.String("scope", scope), zap.Int64("skuId", skuID), zap.Error(err))
		}
	}

	if n.smtp.Host != "" {
		subject := "库存告警"
		body := fmt.Sprintf("范围 %s 下 SKU %d 余量仅剩 %d，请及时补货。", scope, skuID, remaining)
		if err := SendEmail(n.smtp, subject, body); err != nil {
			n.log.Warn("send low stock email failed", zap.Error(err))
		}
	}
}
