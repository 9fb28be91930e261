package knowledge

import (
	"reflect"
	"regexp"
	"strconv"
	"testing"

	"ReelSage/pkg/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run_id 列宽必须装得下生成的短 UUID，否则严格模式下建运行记录直接报错，
// 非严格模式下截断后 FinishRun 按完整 id 查不到行，运行永远停在 running。
func TestIngestRun_RunIDFitsColumn(t *testing.T) {
	f, ok := reflect.TypeOf(IngestRun{}).FieldByName("RunId")
	require.True(t, ok)

	m := regexp.MustCompile(`char\((\d+)\)`).FindStringSubmatch(f.Tag.Get("gorm"))
	require.Len(t, m, 2, "run_id column must declare a char width")
	width, err := strconv.Atoi(m[1])
	require.NoError(t, err)

	id := util.GenerateShortUUID()
	assert.Len(t, id, 32)
	assert.GreaterOrEqual(t, width, len(id))
}

func TestTableNames(t *testing.T) {
	assert.Equal(t, "knowledge_media", KnowledgeMedia{}.TableName())
	assert.Equal(t, "knowledge_ingest_run", IngestRun{}.TableName())
	assert.Equal(t, "knowledge_index_meta", KnowledgeIndexMeta{}.TableName())
}
