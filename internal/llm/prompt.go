package llm

import (
	"fmt"
	"math/rand"
	"strings"
)

var (
	promptStyles = []string{"cinematic", "artistic", "photorealistic", "digital art", "concept art", "fantasy art"}
	promptMoods  = []string{"dramatic", "vibrant", "mysterious", "epic", "futuristic", "ethereal"}
	promptAngles = []string{"wide angle", "close-up", "aerial view", "low angle", "dynamic perspective", "side view"}
)

const promptBaseContext = "A NFT-worthy cinematic artwork in a futuristic digital world with vibrant colors, dynamic lighting, and imaginative elements."

// EnrichPrompt 在用户 prompt 外包上固定背景，并随机挑选风格、情绪、镜头与种子。
// 同一 seed 总是得到同样的结果；多个变体之间的差异完全来自不同的 seed。
func EnrichPrompt(prompt string, seed int64) string {
	rng := rand.New(rand.NewSource(seed))
	style := promptStyles[rng.Intn(len(promptStyles))]
	mood := promptMoods[rng.Intn(len(promptMoods))]
	angle := promptAngles[rng.Intn(len(promptAngles))]
	uniqueSeed := rng.Intn(1_000_000)

	var b strings.Builder
	b.WriteString(promptBaseContext)
	fmt.Fprintf(&b, " The scene depicts: %s.", strings.TrimSpace(prompt))
	fmt.Fprintf(&b, " Style: %s, %s mood, %s shot.", style, mood, angle)
	fmt.Fprintf(&b, " Unique seed: %d.", uniqueSeed)
	b.WriteString(" Make it unique, visually striking, and suitable for an NFT collection.")
	return b.String()
}
