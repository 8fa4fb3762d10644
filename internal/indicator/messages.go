package indicator

import (
	"os"
	"strings"
)

type locale string

const (
	localeEnglish locale = "en"
	localeChinese locale = "zh"
)

type messages struct {
	generating string
	complete   string
	failed     string
	errorText  string
}

func indicatorMessagesFromEnv() messages {
	return indicatorMessages(resolveLocale(os.Getenv("LANG")))
}

func resolveLocale(raw string) locale {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if strings.HasPrefix(raw, "zh") {
		return localeChinese
	}
	return localeEnglish
}

func indicatorMessages(tag locale) messages {
	switch tag {
	case localeChinese:
		return messages{
			generating: "生成中…(云端处理)",
			complete:   "音乐生成完成",
			failed:     "生成失败",
			errorText:  "生成出错，重试即可",
		}
	default:
		return messages{
			generating: "Generating music…",
			complete:   "Music ready",
			failed:     "Generation failed",
			errorText:  "Music generation error",
		}
	}
}
