package llm

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/archertao78/aistock/internal/model"
)

const researchPrompt = `角色：
扮演顶级投资基金的精英股票研究分析师。
你的任务是从基本面和宏观经济角度分析公司。每一个指标都必须标注数据来源和日期。不要估算或编造任何数字。并按照以下框架组织报告。

股票代码 / 公司名称：

指令：
使用以下结构提供清晰、逻辑严谨的股票研究报告：
1. 基本面分析
公司概览：用通俗易懂的语言解释这家公司是做什么的，分析收入增长、毛利率与净利率趋势、自由现金流，
与行业同类公司比较估值指标（P/E, EV/EBITDA 等）
查看内部持股及近期内部交易
2. 论点验证
提出支持投资论点的 3 个理由
强调 2 个反对论点或关键风险
给出最终结论：看涨 / 看跌 / 中性，并附理由
3. 行业与宏观视角
简述行业概况
概述相关宏观经济趋势
说明公司竞争定位

在输出页面的格式要求：
符合手机观看。适当使用项目符号
简洁、专业、有洞察力
不需要解释过程，只需提供分析。

输出要求：
请使用 Markdown 格式输出完整报告。
禁止输出任何开场客套话（例如“好的，这是一份…”），直接从报告标题与正文开始。

在报告下方说明：
需要更专业的研究报告请关注公众号 “火眼金晴观世界” 留言获取。`

const notProvided = "未提供"

// BuildResearchPrompt returns the equity research prompt for one company.
// Empty thesis or target are rendered as "not provided".
func BuildResearchPrompt(symbolOrName, thesis, target string) string {
	if strings.TrimSpace(thesis) == "" {
		thesis = notProvided
	}
	if strings.TrimSpace(target) == "" {
		target = notProvided
	}
	return fmt.Sprintf("%s\n\n股票代码 / 公司名称：%s\n投资论点：%s\n目标：%s", researchPrompt, symbolOrName, thesis, target)
}

// SignalLabel is the Chinese label used in prompts and chat messages.
func SignalLabel(t model.SignalType) string {
	if t == model.GoldenCross {
		return "MACD 金叉"
	}
	return "MACD 死叉"
}

// Round6 rounds to six decimals, the precision used in logs and prompts.
func Round6(v float64) float64 {
	f, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 6, 64), 64)
	return f
}

func fmtNum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// BuildSignalPrompt returns the short crypto commentary prompt for a cross.
func BuildSignalPrompt(ev model.SignalEvent, bar string) string {
	return fmt.Sprintf(`角色：
你是资深数字货币交易研究员。请根据给定技术信号，输出简短、可执行、风险提示明确的结论。

任务：
基于以下行情信号，做快速分析并给出操作参考：
- 交易对：%s
- 信号类型：%s
- K线周期：%s
- 信号K线时间：%s
- 最新收盘价：%s
- MACD：%s
- Signal：%s
- Histogram：%s

输出要求：
1. 使用 Markdown
2. 必须包含：信号解读、可能情景、风险点、短线应对建议
3. 内容控制在 200-300 字
4. 不要输出免责声明或客套话，直接给结论`,
		ev.InstID,
		SignalLabel(ev.SignalType),
		bar,
		ev.CandleTime.UTC().Format(time.RFC3339),
		fmtNum(ev.Close),
		fmtNum(Round6(ev.MACD)),
		fmtNum(Round6(ev.SignalLine)),
		fmtNum(Round6(ev.Histogram)),
	)
}
