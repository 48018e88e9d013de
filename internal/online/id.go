package online

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

const sessionIDPrefix = "sess_"

// idGenerator 生成形如 sess_<毫秒时间戳>_<32 位十六进制随机串> 的会话 ID。
//
// 随机部分来自注册表独占的 ChaCha8 随机源，只在创建时用 crypto/rand 播种一次。
// idGenerator 本身不加锁，调用方需持有注册表的写锁。
type idGenerator struct {
	src *rand.ChaCha8
}

func newIDGenerator() *idGenerator {
	var seed [32]byte
	if _, err := cryptorand.Read(seed[:]); err != nil {
		binary.LittleEndian.PutUint64(seed[:8], uint64(time.Now().UnixNano()))
	}
	return &idGenerator{src: rand.NewChaCha8(seed)}
}

func (g *idGenerator) next(now time.Time) (string, error) {
	u, err := uuid.NewRandomFromReader(g.src)
	if err != nil {
		return "", errors.Wrap(err, "generate session id")
	}
	var b strings.Builder
	b.Grow(len(sessionIDPrefix) + 13 + 1 + 32)
	b.WriteString(sessionIDPrefix)
	b.WriteString(strconv.FormatInt(now.UnixMilli(), 10))
	b.WriteByte('_')
	b.WriteString(strings.ReplaceAll(u.String(), "-", ""))
	return b.String(), nil
}
