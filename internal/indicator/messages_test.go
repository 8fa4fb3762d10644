package indicator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveLocale(t *testing.T) {
	require.Equal(t, localeEnglish, resolveLocale("en_US.UTF-8"))
	require.Equal(t, localeEnglish, resolveLocale("fr_FR.UTF-8"))
	require.Equal(t, localeEnglish, resolveLocale(""))
	require.Equal(t, localeChinese, resolveLocale("zh_CN.UTF-8"))
}

func TestIndicatorMessages(t *testing.T) {
	msg := indicatorMessages(localeEnglish)
	require.Equal(t, "Generating music…", msg.generating)
	require.Equal(t, "Music ready", msg.complete)
	require.Equal(t, "Generation failed", msg.failed)

	zh := indicatorMessages(localeChinese)
	require.Equal(t, "音乐生成完成", zh.complete)
}
