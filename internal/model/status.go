package model

// CampaignStatus 活动/场次共用的状态机枚举
type CampaignStatus int

const (
	StatusPending   CampaignStatus = 0 // 未开始
	StatusActive    CampaignStatus = 1 // 进行中
	StatusEnded     CampaignStatus = 2 // 已结束
	StatusCancelled CampaignStatus = 3 // 已取消
	StatusSoldOut   CampaignStatus = 4 // 已售罄
)

// IsTerminal 已结束/已取消为终态，不允许再次流转
func (s CampaignStatus) IsTerminal() bool {
	return s == StatusEnded || s == StatusCancelled
}

func (s CampaignStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusActive:
		return "active"
	case StatusEnded:
		return "ended"
	case StatusCancelled:
		return "cancelled"
	case StatusSoldOut:
		return "sold_out"
	default:
		return "unknown"
	}
}
