package terraform

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stateFixture = `{
  "format_version": "1.0",
  "terraform_version": "1.7.5",
  "values": {
    "root_module": {
      "resources": [
        {
          "address": "google_project_iam_member.viewer",
          "mode": "managed",
          "type": "google_project_iam_member",
          "name": "viewer",
          "provider_name": "registry.terraform.io/hashicorp/google",
          "values": {"member": "user:ops@example.com", "role": "roles/viewer"},
          "sensitive_values": {}
        },
        {
          "address": "data.google_project.current",
          "mode": "data",
          "type": "google_project",
          "name": "current",
          "provider_name": "registry.terraform.io/hashicorp/google",
          "values": {"project_id": "demo"}
        }
      ],
      "child_modules": [
        {
          "address": "module.storage",
          "resources": [
            {
              "address": "module.storage.google_storage_bucket.this",
              "mode": "managed",
              "type": "google_storage_bucket",
              "name": "this",
              "provider_name": "registry.terraform.io/hashicorp/google",
              "values": {
                "name": "my-bucket-",
                "location": "US-CENTRAL1",
                "labels": {"team": "ops"},
                "hmac_secret": {"value": "shh"},
                "retention": {"constant_value": 30},
                "kms_key": {"references": ["var.key"]}
              },
              "sensitive_values": {"hmac_secret": {"value": true}, "labels": {}}
            }
          ],
          "child_modules": [
            {
              "address": "module.storage.module.acl",
              "resources": [
                {
                  "address": "module.storage.module.acl.google_storage_bucket_acl.this",
                  "mode": "managed",
                  "type": "google_storage_bucket_acl",
                  "name": "this",
                  "provider_name": "registry.terraform.io/hashicorp/google",
                  "values": {"labels": {"name": "acl-label"}},
                  "tainted": true
                }
              ]
            }
          ]
        },
        {
          "address": "module.vpc",
          "resources": [
            {
              "address": "module.vpc.aws_vpc.main",
              "mode": "managed",
              "type": "aws_vpc",
              "name": "main",
              "provider_name": "registry.terraform.io/hashicorp/aws",
              "values": {"tags": {"Name": "core-vpc"}}
            },
            {
              "address": "module.vpc.aws_eip.nat",
              "mode": "managed",
              "type": "aws_eip",
              "name": "",
              "provider_name": "registry.terraform.io/hashicorp/aws",
              "values": {}
            }
          ]
        }
      ]
    }
  }
}`

func TestExtractStateWalksDepthFirst(t *testing.T) {
	res, err := ExtractState([]byte(stateFixture))
	require.NoError(t, err)

	var ids []string
	for _, r := range res {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{
		"google_project_iam_member.viewer",
		"module.storage.google_storage_bucket.this",
		"module.storage.module.acl.google_storage_bucket_acl.this",
		"module.vpc.aws_vpc.main",
		"module.vpc.aws_eip.nat",
	}, ids)

	assert.Equal(t, "viewer", res[0].Name)
	assert.Equal(t, "my-bucket-", res[1].Name)
	assert.Equal(t, "acl-label", res[2].Name)
	assert.Equal(t, "core-vpc", res[3].Name)
	assert.Equal(t, "unknown", res[4].Name)

	assert.Equal(t, StatusActive, res[1].Status)
	assert.Equal(t, StatusTainted, res[2].Status)
	assert.Equal(t, "registry.terraform.io/hashicorp/google", res[1].Provider)
}

func TestExtractStateSanitizesAttributes(t *testing.T) {
	res, err := ExtractState([]byte(stateFixture))
	require.NoError(t, err)

	bucket := res[1].Attributes
	assert.NotContains(t, bucket, "hmac_secret")
	assert.Contains(t, bucket, "labels")
	assert.Nil(t, bucket["kms_key"])
	assert.Contains(t, bucket, "kms_key")
	assert.Equal(t, "30", fmt.Sprint(bucket["retention"]))
}

func TestExtractIsDeterministic(t *testing.T) {
	a, err := ExtractState([]byte(stateFixture))
	require.NoError(t, err)
	b, err := ExtractState([]byte(stateFixture))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestExtractEmptyState(t *testing.T) {
	res, err := ExtractState([]byte(`{"format_version":"1.0"}`))
	require.NoError(t, err)
	assert.Empty(t, res)

	_, err = ExtractState([]byte(`{"values":{}}`))
	assert.Error(t, err)
}

const planFixture = `{
  "format_version": "1.2",
  "terraform_version": "1.7.5",
  "planned_values": {
    "root_module": {
      "child_modules": [
        {
          "address": "module.storage",
          "resources": [
            {
              "address": "module.storage.aws_s3_bucket.this",
              "mode": "managed",
              "type": "aws_s3_bucket",
              "name": "this",
              "provider_name": "registry.terraform.io/hashicorp/aws",
              "values": {"bucket": "assets", "arn": null, "tags": {"Name": "assets"}},
              "sensitive_values": {}
            }
          ]
        }
      ]
    }
  },
  "resource_changes": [
    {
      "address": "module.storage.aws_s3_bucket.this",
      "module_address": "module.storage",
      "mode": "managed",
      "type": "aws_s3_bucket",
      "name": "this",
      "provider_name": "registry.terraform.io/hashicorp/aws",
      "change": {
        "actions": ["create"],
        "before": null,
        "after": {"bucket": "assets"},
        "after_unknown": {"arn": true, "tags": {}},
        "before_sensitive": false,
        "after_sensitive": {"tags": {}}
      }
    },
    {
      "address": "aws_iam_user.old",
      "mode": "managed",
      "type": "aws_iam_user",
      "name": "old",
      "provider_name": "registry.terraform.io/hashicorp/aws",
      "change": {
        "actions": ["delete"],
        "before": {"name": "legacy", "password": "p"},
        "after": null,
        "after_unknown": {},
        "before_sensitive": {"password": true},
        "after_sensitive": false
      }
    }
  ]
}`

func TestExtractPlan(t *testing.T) {
	res, err := ExtractPlan([]byte(planFixture))
	require.NoError(t, err)
	require.Len(t, res, 2)

	assert.Equal(t, "module.storage.aws_s3_bucket.this", res[0].ID)
	assert.Equal(t, "create", res[0].Status)
	assert.Equal(t, "assets", res[0].Name)
	assert.Contains(t, res[0].Attributes, "arn")
	assert.Nil(t, res[0].Attributes["arn"])

	assert.Equal(t, "aws_iam_user.old", res[1].ID)
	assert.Equal(t, "delete", res[1].Status)
	assert.Equal(t, "legacy", res[1].Name)
	assert.NotContains(t, res[1].Attributes, "password")
}
