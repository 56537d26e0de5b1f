package sdist

import (
	"context"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestName(t *testing.T) {
	assert.Equal(t, "widgets-1.2.3.tar.gz", Name("widgets", "1.2.3"))
}

func TestBuildExtractRoundTrip(t *testing.T) {
	files := map[string]string{
		"setup.py":            "version=\"1.2.3\"\n",
		"src/pkg/__init__.py": "",
		"src/pkg/_version.py": "__version__ = \"1.2.3\"\n",
	}

	data, err := Build("widgets", "1.2.3", files)
	require.NoError(t, err)

	got, err := Extract(data)
	require.NoError(t, err)
	assert.Equal(t, files, got)
}

func TestBuildDeterministic(t *testing.T) {
	files := map[string]string{
		"b.txt": "bee",
		"a.txt": "ay",
		"c.txt": "sea",
	}

	first, err := Build("widgets", "1.0.0", files)
	require.NoError(t, err)

	second, err := Build("widgets", "1.0.0", files)
	require.NoError(t, err)

	assert.Equal(t, Checksum(first), Checksum(second))
	assert.Equal(t, first, second)
}

func TestExtractStripsRootDirectory(t *testing.T) {
	// repository source tarballs carry an {owner}-{repo}-{sha}/ root
	data, err := Build("acme-widgets-abc123", "", map[string]string{
		"setup.py": "version=\"1.2.3\"\n",
	})
	require.NoError(t, err)

	files, err := Extract(data)
	require.NoError(t, err)
	require.Contains(t, files, "setup.py")
}

func TestExtractRejectsGarbage(t *testing.T) {
	_, err := Extract([]byte("not a tarball"))
	assert.Error(t, err)
}

func TestChecksumLine(t *testing.T) {
	line := ChecksumLine("widgets-1.2.3.tar.gz", []byte("data"))
	assert.True(t, strings.HasSuffix(line, "  widgets-1.2.3.tar.gz\n"))
	assert.Len(t, strings.Fields(line)[0], 64)
}

type fakeS3 struct {
	puts map[string][]byte
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.puts == nil {
		f.puts = make(map[string][]byte)
	}
	buf := make([]byte, 0)
	if params.Body != nil {
		b := make([]byte, 1024*1024)
		n, _ := params.Body.Read(b)
		buf = b[:n]
	}
	f.puts[aws.ToString(params.Key)] = buf
	return &s3.PutObjectOutput{}, nil
}

func TestStorePut(t *testing.T) {
	fake := &fakeS3{}
	store := NewStore(fake, "artifact-bucket")

	data, err := Build("widgets", "1.2.3", map[string]string{"setup.py": "x"})
	require.NoError(t, err)

	key, err := store.Put(context.Background(), "acme/widgets/v1.2.3", "widgets-1.2.3.tar.gz", data)
	require.NoError(t, err)
	assert.Equal(t, "acme/widgets/v1.2.3/widgets-1.2.3.tar.gz", key)

	assert.Contains(t, fake.puts, "acme/widgets/v1.2.3/widgets-1.2.3.tar.gz")
	require.Contains(t, fake.puts, "acme/widgets/v1.2.3/SHA256SUMS")
	assert.Contains(t, string(fake.puts["acme/widgets/v1.2.3/SHA256SUMS"]), "widgets-1.2.3.tar.gz")
	assert.Equal(t, "artifact-bucket", store.Bucket())
}
