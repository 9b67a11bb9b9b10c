package models

import "fmt"

// Channel 已知的客户来源渠道
type Channel string

const (
	ChannelUnknown    Channel = "unknown"
	ChannelWebsite    Channel = "website"
	ChannelInstagram  Channel = "instagram"
	ChannelTelegram   Channel = "telegram"
	ChannelWhatsApp   Channel = "whatsapp"
	ChannelReferral   Channel = "referral"
	ChannelColdCall   Channel = "cold_call"
	ChannelMarket     Channel = "marketplace"
	ChannelExhibition Channel = "exhibition"
	ChannelEmail      Channel = "email"
	ChannelAds        Channel = "ads"
	ChannelOther      Channel = "other"
)

// OtherBuckets 自定义来源的哈希桶数量
const OtherBuckets = 16

// SourceBucket 归一化后的来源。Channel 为 ChannelOther 时 Hash 有效
type SourceBucket struct {
	Channel Channel
	Hash    uint32
}

// Key 稳定的桶标识
func (b SourceBucket) Key() string {
	if b.Channel == ChannelOther {
		return fmt.Sprintf("other_%02d", b.Hash%OtherBuckets)
	}
	return string(b.Channel)
}

var channelLabels = map[Channel]string{
	ChannelUnknown:    "未知",
	ChannelWebsite:    "官网",
	ChannelInstagram:  "Instagram",
	ChannelTelegram:   "Telegram",
	ChannelWhatsApp:   "WhatsApp",
	ChannelReferral:   "转介绍",
	ChannelColdCall:   "电话陌拜",
	ChannelMarket:     "电商平台",
	ChannelExhibition: "展会",
	ChannelEmail:      "邮件",
	ChannelAds:        "广告投放",
}

// Label 展示名称
func (b SourceBucket) Label() string {
	if b.Channel == ChannelOther {
		return fmt.Sprintf("其他 #%02d", b.Hash%OtherBuckets)
	}
	if label, ok := channelLabels[b.Channel]; ok {
		return label
	}
	return string(b.Channel)
}
