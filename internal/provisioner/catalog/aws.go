package catalog

var awsSpec = &ProviderSpec{
	Name:          AWS,
	Prefix:        "aws",
	LocalName:     "aws",
	Source:        "hashicorp/aws",
	Version:       "~> 5.0",
	DefaultRegion: "us-east-1",
	Regions: []string{
		"us-east-1", "us-east-2", "us-west-1", "us-west-2",
		"ca-central-1", "eu-west-1", "eu-west-2", "eu-central-1",
		"ap-south-1", "ap-southeast-1", "ap-southeast-2", "ap-northeast-1",
		"sa-east-1",
	},
	CredentialFields: []string{"access_key_id", "secret_access_key"},
	Modules: []Module{
		{
			ID:          "vpc",
			Kind:        KindNetwork,
			Resource:    "vpc",
			Description: "VPC with public subnets and an internet gateway",
			Fields: []Field{
				{Name: "vpc_name", Aliases: []string{"name"}, Kind: String, Default: "cloud-console-vpc", Sanitize: ResourceLabel},
				{Name: "cidr_block", Aliases: []string{"cidr"}, Kind: String, Default: "10.0.0.0/16", Validate: "cidrv4", Hint: "an IPv4 CIDR such as 10.0.0.0/16"},
				{Name: "public_subnets", Aliases: []string{"subnets"}, Kind: List, Default: []any{"10.0.1.0/24", "10.0.2.0/24"}},
				{Name: "enable_dns_hostnames", Kind: Bool, Default: true},
			},
		},
		{
			ID:          "storage",
			Kind:        KindStorage,
			Resource:    "bucket",
			Description: "S3 bucket",
			Fields: []Field{
				{Name: "bucket_name", Aliases: []string{"name"}, Kind: String, Required: true, Sanitize: BucketName},
				{Name: "versioning", Aliases: []string{"versioning_enabled"}, Kind: Bool, Default: false},
				{Name: "force_destroy", Kind: Bool, Default: true},
			},
		},
		{
			ID:          "compute",
			Kind:        KindCompute,
			Resource:    "instance",
			Description: "EC2 instances",
			Fields: []Field{
				{Name: "instance_name", Aliases: []string{"name"}, Kind: String, Required: true, Sanitize: ResourceLabel},
				{Name: "instance_type", Aliases: []string{"type", "size"}, Kind: String, Default: "t3.micro"},
				{Name: "instance_count", Aliases: []string{"count"}, Kind: Number, Default: 1, Validate: "min=1,max=20", Hint: "a number between 1 and 20"},
				{Name: "ami", Aliases: []string{"image"}, Kind: String},
			},
		},
		{
			ID:          "kubernetes",
			Kind:        KindKubernetes,
			Resource:    "cluster",
			Description: "EKS cluster with a managed node group",
			Fields: []Field{
				{Name: "cluster_name", Aliases: []string{"name"}, Kind: String, Required: true, Sanitize: ResourceLabel},
				{Name: "kubernetes_version", Aliases: []string{"version"}, Kind: String, Default: "1.29"},
				{Name: "node_count", Aliases: []string{"nodes"}, Kind: Number, Default: 2, Validate: "min=1,max=100", Hint: "a number between 1 and 100"},
				{Name: "node_instance_type", Aliases: []string{"instance_type"}, Kind: String, Default: "t3.medium"},
			},
		},
	},
}
