package warehouse

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeArtifact(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.json")
	var buf []byte
	for _, l := range lines {
		buf = append(buf, l...)
		buf = append(buf, '\n')
	}
	require.NoError(t, os.WriteFile(path, buf, 0o644))
	return path
}

const artifactLine = `{"accountId":1,"adId":9,"adSetId":4,"campaignId":5,"startDate":"2024-01-01","spend":12.5}`

func expectEnsureTables(mock pgxmock.PgxPoolIface) {
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS").WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectExec("CREATE UNIQUE INDEX IF NOT EXISTS").WillReturnResult(pgxmock.NewResult("CREATE INDEX", 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS").WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
}

func TestLoad_StagesMergesAndDrops(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	expectEnsureTables(mock)
	mock.ExpectExec("TRUNCATE").WillReturnResult(pgxmock.NewResult("TRUNCATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"quora_ads", "quora_ads_tmp"}, ColumnNames()).WillReturnResult(1)
	mock.ExpectExec("MERGE INTO").WillReturnResult(pgxmock.NewResult("MERGE", 1))
	mock.ExpectExec("DROP TABLE IF EXISTS").WillReturnResult(pgxmock.NewResult("DROP TABLE", 0))

	loader := NewLoader(New(mock, "quora_ads"), "quora_ads", "quora_ads_tmp")
	staged, err := loader.Load(context.Background(), writeArtifact(t, artifactLine))
	require.NoError(t, err)
	assert.Equal(t, int64(1), staged)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoad_MergeFailureSwallowedStagingStillDropped(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	expectEnsureTables(mock)
	mock.ExpectExec("TRUNCATE").WillReturnResult(pgxmock.NewResult("TRUNCATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"quora_ads", "quora_ads_tmp"}, ColumnNames()).WillReturnResult(1)
	mock.ExpectExec("MERGE INTO").WillReturnError(fmt.Errorf("deadlock detected"))
	mock.ExpectExec("DROP TABLE IF EXISTS").WillReturnResult(pgxmock.NewResult("DROP TABLE", 0))

	loader := NewLoader(New(mock, "quora_ads"), "quora_ads", "quora_ads_tmp")
	staged, err := loader.Load(context.Background(), writeArtifact(t, artifactLine))
	require.NoError(t, err, "a merge failure must not fail the run")
	assert.Equal(t, int64(1), staged)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoad_StagingFailureIsFatalAndSkipsMerge(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	expectEnsureTables(mock)
	mock.ExpectExec("TRUNCATE").WillReturnResult(pgxmock.NewResult("TRUNCATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"quora_ads", "quora_ads_tmp"}, ColumnNames()).
		WillReturnError(fmt.Errorf("connection reset"))

	loader := NewLoader(New(mock, "quora_ads"), "quora_ads", "quora_ads_tmp")
	_, err = loader.Load(context.Background(), writeArtifact(t, artifactLine))
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet(), "no merge or drop after a failed staging load")
}

func TestLoad_MissingArtifact(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	loader := NewLoader(New(mock, "quora_ads"), "quora_ads", "quora_ads_tmp")
	_, err = loader.Load(context.Background(), filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
