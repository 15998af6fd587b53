package notifier

import (
	"fmt"
	"strconv"
	"strings"

	"LimitUpWatch/internal/model"
)

// FormatSubject builds "<prefix> <trade date>".
func FormatSubject(prefix, tradeDate string) string {
	return strings.TrimSpace(prefix + " " + tradeDate)
}

// FormatSummary renders the HTML body of the daily email. With hits it is a
// table of them; without, a notice carrying the limit-up and hit counts.
func FormatSummary(s *model.RunSummary) string {
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html><html><head><meta charset="UTF-8"></head><body>`)

	if len(s.Hits) > 0 {
		b.WriteString("<p>今日符合條件的標的如下：</p>")
		b.WriteString(formatHitTable(s.Hits))
	} else {
		b.WriteString(fmt.Sprintf("<p>%s 無任何漲停股的買超第一名券商符合設定的主力分點清單。</p>", escapeHTML(s.TradeDate)))
		b.WriteString(fmt.Sprintf("<p>漲停檔數：%d，命中標的數：%d</p>", len(s.LimitUps), len(s.Hits)))
	}

	// Partial data must be visible to the reader.
	var failed []string
	for _, src := range s.Sources {
		if src.Status == model.SourceSkipped {
			failed = append(failed, string(src.Market))
		}
	}
	if len(failed) > 0 {
		b.WriteString(fmt.Sprintf("<p>注意：%s 漲停清單抓取失敗，結果可能不完整。</p>", escapeHTML(strings.Join(failed, "、"))))
	}
	if n := s.CountStocks(model.StockSkipped); n > 0 {
		b.WriteString(fmt.Sprintf("<p>注意：%d 檔個股的券商資料抓取失敗。</p>", n))
	}

	b.WriteString("</body></html>")
	return b.String()
}

func formatHitTable(hits []model.BrokerHit) string {
	var b strings.Builder
	b.WriteString(`<table border="1" cellspacing="0" cellpadding="4" style="border-collapse: collapse; font-size: 14px;">`)
	b.WriteString(`<thead><tr style="background: #eee;">`)
	for _, h := range []string{"股票", "代號", "市場", "收盤價", "成交量", "漲跌幅", "買超券商", "券商代號", "買超張"} {
		b.WriteString("<th>" + h + "</th>")
	}
	b.WriteString("</tr></thead><tbody>")
	for _, h := range hits {
		b.WriteString(fmt.Sprintf("<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%.2f%%</td><td>%s</td><td>%s</td><td>%.0f</td></tr>",
			escapeHTML(h.Name), escapeHTML(h.Symbol), escapeHTML(string(h.Market)),
			formatOptional(h.Close, 2), formatOptional(h.Volume, 0), h.PctChange,
			escapeHTML(h.BrokerName), escapeHTML(h.BrokerCode), h.BuyVolume))
	}
	b.WriteString("</tbody></table>")
	return b.String()
}

func formatOptional(v *float64, prec int) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', prec, 64)
}

func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, `"`, "&quot;")
	return s
}
