package compiler

import (
	"os"
	"strings"
	"testing"

	"github.com/cloudconsole/engine/pkg/logger"
	apperrors "github.com/cloudconsole/engine/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	if _, err := logger.Init("error", "json"); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	os.Exit(m.Run())
}

func awsAccount() AccountContext {
	return AccountContext{Provider: "aws", Region: "us-east-1", DeploymentID: "aws-0123456789ab"}
}

func TestGenerateSanitizesBucketName(t *testing.T) {
	doc, err := Generate([]string{"storage"}, ModuleConfig{
		"storage": {"bucketName": "My Bucket!"},
	}, awsAccount())
	require.NoError(t, err)

	out := string(doc.Bytes)
	assert.Regexp(t, `bucket_name\s+= "my-bucket-"`, out)
	assert.Regexp(t, `source\s+= "./modules/aws/storage"`, out)
	assert.Equal(t, 1, strings.Count(out, `provider "aws"`))
	assert.Contains(t, out, `"aws-0123456789ab"`)
	assert.Len(t, doc.Digest, 64)
}

func TestGenerateIsDeterministic(t *testing.T) {
	cfg := ModuleConfig{
		"vpc":        {"cidrBlock": "10.1.0.0/16", "name": "core"},
		"kubernetes": {"clusterName": "prod", "nodeCount": "3"},
		"storage":    {"bucket_name": "assets"},
	}
	selected := []string{"kubernetes", "vpc", "storage"}

	first, err := Generate(selected, cfg, awsAccount())
	require.NoError(t, err)
	second, err := Generate(selected, cfg, awsAccount())
	require.NoError(t, err)

	assert.Equal(t, first.Bytes, second.Bytes)
	assert.Equal(t, first.Digest, second.Digest)

	out := string(first.Bytes)
	k := strings.Index(out, `module "kubernetes"`)
	v := strings.Index(out, `module "vpc"`)
	s := strings.Index(out, `module "storage"`)
	p := strings.Index(out, `provider "aws"`)
	require.True(t, p >= 0 && k > p && v > k && s > v, "blocks out of order:\n%s", out)
	assert.Regexp(t, `node_count\s+= 3\n`, out)
}

func TestAliasesProduceIdenticalOutput(t *testing.T) {
	variants := []map[string]any{
		{"bucket_name": "assets"},
		{"bucketName": "assets"},
		{"name": "assets"},
	}
	var docs [][]byte
	for _, fields := range variants {
		doc, err := Generate([]string{"storage"}, ModuleConfig{"storage": fields}, awsAccount())
		require.NoError(t, err)
		docs = append(docs, doc.Bytes)
	}
	assert.Equal(t, docs[0], docs[1])
	assert.Equal(t, docs[0], docs[2])
}

func TestCanonicalKeyBeatsAlias(t *testing.T) {
	doc, err := Generate([]string{"storage"}, ModuleConfig{
		"storage": {"name": "alias", "bucket_name": "canonical"},
	}, awsAccount())
	require.NoError(t, err)
	assert.Regexp(t, `bucket_name\s+= "canonical"`, string(doc.Bytes))
	assert.NotContains(t, string(doc.Bytes), "alias")
}

func TestDNSNameRequiresTrailingDot(t *testing.T) {
	acct := AccountContext{Provider: "gcp", Region: "us-central1", ProjectID: "demo"}

	_, err := Generate([]string{"dns"}, ModuleConfig{"dns": {"dnsName": "example.com"}}, acct)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalid))
	assert.Contains(t, err.Error(), `must end with "."`)

	doc, err := Generate([]string{"dns"}, ModuleConfig{"dns": {"dnsName": "example.com."}}, acct)
	require.NoError(t, err)
	out := string(doc.Bytes)
	assert.Regexp(t, `dns_name\s+= "example.com."`, out)
	assert.Regexp(t, `project\s+= "demo"`, out)
}

func TestIAMMemberMustBeEmail(t *testing.T) {
	acct := AccountContext{Provider: "gcp", Region: "global", ProjectID: "demo"}

	_, err := Generate([]string{"iam"}, ModuleConfig{"iam": {"email": "not-an-email"}}, acct)
	require.Error(t, err)
	var ae *apperrors.AppError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "iam", ae.Meta["module"])
	assert.Equal(t, "member", ae.Meta["field"])

	doc, err := Generate([]string{"iam"}, ModuleConfig{"iam": {"email": "ops@example.com"}}, acct)
	require.NoError(t, err)
	assert.Equal(t, "us-central1", doc.Region)
	assert.Regexp(t, `role\s+= "roles/viewer"`, string(doc.Bytes))
}

func TestRequiredFieldMissing(t *testing.T) {
	_, err := Generate([]string{"compute"}, ModuleConfig{}, awsAccount())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compute.instance_name is required")
}

func TestRejectsBadSelections(t *testing.T) {
	_, err := Generate(nil, nil, awsAccount())
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalid))

	_, err = Generate([]string{"dns"}, nil, awsAccount())
	assert.ErrorContains(t, err, `module "dns" is not available for aws`)

	_, err = Generate([]string{"storage", "storage"}, ModuleConfig{"storage": {"name": "x"}}, awsAccount())
	assert.ErrorContains(t, err, "more than once")

	acct := awsAccount()
	acct.Region = ""
	_, err = Generate([]string{"storage"}, ModuleConfig{"storage": {"name": "x"}}, acct)
	assert.ErrorContains(t, err, "region is required")
}

func TestAzureProviderBlock(t *testing.T) {
	doc, err := Generate([]string{"storage"}, ModuleConfig{
		"storage": {"name": "My-Storage_01"},
	}, AccountContext{Provider: "azure", Region: "westeurope", SubscriptionID: "sub-1"})
	require.NoError(t, err)

	out := string(doc.Bytes)
	assert.Contains(t, out, `provider "azurerm"`)
	assert.Contains(t, out, "features {")
	assert.Regexp(t, `subscription_id\s+= "sub-1"`, out)
	assert.Regexp(t, `location\s+= "westeurope"`, out)
	assert.Regexp(t, `storage_account_name\s+= "mystorage01"`, out)
	assert.Regexp(t, `resource_group_name\s+= "cloud-console-rg"`, out)
}

func TestCoercion(t *testing.T) {
	doc, err := Generate([]string{"storage", "vpc"}, ModuleConfig{
		"storage": {"name": "b", "versioning": "true", "unknownKey": 1},
		"vpc":     {"public_subnets": "10.0.1.0/24, 10.0.2.0/24"},
		"compute": {"ignored": true},
	}, awsAccount())
	require.NoError(t, err)
	out := string(doc.Bytes)
	assert.Regexp(t, `versioning\s+= true`, out)
	assert.Contains(t, out, `"10.0.1.0/24", "10.0.2.0/24"`)
	assert.NotContains(t, out, "unknown")
	assert.NotContains(t, out, "ignored")

	_, err = Generate([]string{"kubernetes"}, ModuleConfig{
		"kubernetes": {"name": "c", "node_count": "many"},
	}, awsAccount())
	assert.ErrorContains(t, err, "is not a number")

	_, err = Generate([]string{"kubernetes"}, ModuleConfig{
		"kubernetes": {"name": "c", "node_count": 500},
	}, awsAccount())
	assert.ErrorContains(t, err, "between 1 and 100")
}

func TestSnakeCase(t *testing.T) {
	cases := map[string]string{
		"bucketName":  "bucket_name",
		"cidrBlock":   "cidr_block",
		"bucket_name": "bucket_name",
		"DNSName":     "dns_name",
		"node-count":  "node_count",
		"vpcID":       "vpc_id",
	}
	for in, want := range cases {
		assert.Equal(t, want, SnakeCase(in), in)
	}
}
