package service

import (
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/BerniceZTT/crm_stats/models"
)

// channelRule 渠道关键字规则，按顺序匹配
type channelRule struct {
	channel  models.Channel
	keywords []string
}

var channelRules = []channelRule{
	{models.ChannelInstagram, []string{"instagram", "insta", "инст", "ig"}},
	{models.ChannelTelegram, []string{"telegram", "tg", "телег"}},
	{models.ChannelWhatsApp, []string{"whatsapp", "whats", "wa", "ватс", "вотс"}},
	{models.ChannelReferral, []string{"referral", "recommend", "friend", "рекоменд", "сарафан", "转介绍", "推荐"}},
	{models.ChannelColdCall, []string{"cold", "call", "холод", "звон", "电话", "陌拜"}},
	{models.ChannelMarket, []string{"marketplace", "avito", "ozon", "wildberries", "авито", "淘宝", "电商"}},
	{models.ChannelExhibition, []string{"expo", "exhibition", "выставк", "展会"}},
	{models.ChannelEmail, []string{"email", "e-mail", "mail", "почт", "рассыл", "邮件"}},
	{models.ChannelAds, []string{"ads", "advert", "target", "google", "yandex", "реклам", "таргет", "广告"}},
	{models.ChannelWebsite, []string{"website", "site", "web", "landing", "сайт", "官网", "网站"}},
}

// ClassifySource 把自由文本来源归一化到固定的渠道集合
func ClassifySource(raw string) models.SourceBucket {
	text := strings.ToLower(strings.TrimSpace(raw))
	if text == "" || text == "-" || text == "unknown" || text == "нет" {
		return models.SourceBucket{Channel: models.ChannelUnknown}
	}

	tokens := tokenize(text)
	for _, rule := range channelRules {
		for _, kw := range rule.keywords {
			if matchKeyword(text, tokens, kw) {
				return models.SourceBucket{Channel: rule.channel}
			}
		}
	}

	folded := foldSource(text)
	if folded == "" {
		return models.SourceBucket{Channel: models.ChannelUnknown}
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(folded))
	return models.SourceBucket{Channel: models.ChannelOther, Hash: h.Sum32() % models.OtherBuckets}
}

// matchKeyword 短关键字（≤2个字符）只按整词匹配，避免误命中
func matchKeyword(text string, tokens []string, kw string) bool {
	if len([]rune(kw)) <= 2 {
		for _, t := range tokens {
			if t == kw {
				return true
			}
		}
		return false
	}
	return strings.Contains(text, kw)
}

func tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// foldSource 仅保留字母与数字，使大小写、空格、标点不同的写法落入同一个桶
func foldSource(text string) string {
	var b strings.Builder
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SmoothedRate 平滑成功率 (success + a) / (count + b)
func SmoothedRate(success float64, count int64, priorSuccess, priorCount float64) float64 {
	denom := float64(count) + priorCount
	if denom <= 0 {
		return 0
	}
	return (success + priorSuccess) / denom
}
