package observability

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLogger(t *testing.T) {
	auditPath := filepath.Join(t.TempDir(), "audit.log")
	require.NoError(t, InitAuditLogger(auditPath))
	defer GetAuditLogger().Close()

	RecordCallAudit(context.Background(), "run_script", "success", map[string]interface{}{
		"command_id": int64(1),
	})
	RecordRelayAudit(context.Background(), "command_timeout", "timeout", nil)

	data, err := os.ReadFile(auditPath)
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, `"action":"call:run_script"`)
	assert.Contains(t, text, `"status":"success"`)
	assert.Contains(t, text, `"action":"command_timeout"`)
	assert.Contains(t, text, `"type":"relay"`)
}
