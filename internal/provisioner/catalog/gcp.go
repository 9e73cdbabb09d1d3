package catalog

var gcpSpec = &ProviderSpec{
	Name:          GCP,
	Prefix:        "gcp",
	LocalName:     "google",
	Source:        "hashicorp/google",
	Version:       "~> 5.0",
	DefaultRegion: "us-central1",
	Regions: []string{
		"us-central1", "us-east1", "us-east4", "us-west1", "us-west2",
		"northamerica-northeast1", "southamerica-east1",
		"europe-west1", "europe-west2", "europe-west3", "europe-north1",
		"asia-east1", "asia-southeast1", "asia-northeast1", "australia-southeast1",
	},
	IsolatedWorkspace: true,
	CredentialFields:  []string{"project_id", "client_email", "private_key"},
	Modules: []Module{
		{
			ID:          "vpc",
			Kind:        KindNetwork,
			Resource:    "network",
			Description: "VPC network with one regional subnetwork",
			Fields: []Field{
				{Name: "network_name", Aliases: []string{"name", "vpc_name"}, Kind: String, Default: "cloud-console-network", Sanitize: ResourceLabel},
				{Name: "subnet_cidr", Aliases: []string{"cidr_block", "cidr"}, Kind: String, Default: "10.10.0.0/24", Validate: "cidrv4", Hint: "an IPv4 CIDR such as 10.10.0.0/24"},
				{Name: "auto_create_subnetworks", Kind: Bool, Default: false},
			},
		},
		{
			ID:          "storage",
			Kind:        KindStorage,
			Resource:    "bucket",
			Description: "Cloud Storage bucket",
			Fields: []Field{
				{Name: "bucket_name", Aliases: []string{"name"}, Kind: String, Required: true, Sanitize: BucketName},
				{Name: "storage_class", Aliases: []string{"class"}, Kind: String, Default: "STANDARD", Validate: "oneof=STANDARD NEARLINE COLDLINE ARCHIVE", Hint: "one of STANDARD, NEARLINE, COLDLINE or ARCHIVE"},
				{Name: "versioning", Aliases: []string{"versioning_enabled"}, Kind: Bool, Default: false},
			},
		},
		{
			ID:          "compute",
			Kind:        KindCompute,
			Resource:    "instance",
			Description: "Compute Engine instance",
			Fields: []Field{
				{Name: "instance_name", Aliases: []string{"name"}, Kind: String, Required: true, Sanitize: ResourceLabel},
				{Name: "machine_type", Aliases: []string{"instance_type", "size"}, Kind: String, Default: "e2-medium"},
				{Name: "image", Kind: String, Default: "debian-cloud/debian-12"},
				{Name: "zone", Kind: String},
			},
		},
		{
			ID:          "kubernetes",
			Kind:        KindKubernetes,
			Resource:    "cluster",
			Description: "GKE cluster with a node pool",
			Fields: []Field{
				{Name: "cluster_name", Aliases: []string{"name"}, Kind: String, Required: true, Sanitize: ResourceLabel},
				{Name: "node_count", Aliases: []string{"nodes"}, Kind: Number, Default: 1, Validate: "min=1,max=100", Hint: "a number between 1 and 100"},
				{Name: "machine_type", Aliases: []string{"node_machine_type"}, Kind: String, Default: "e2-standard-4"},
			},
		},
		{
			ID:          "dns",
			Kind:        KindDNS,
			Resource:    "managed_zone",
			Description: "Cloud DNS managed zone",
			Fields: []Field{
				{Name: "zone_name", Aliases: []string{"name"}, Kind: String, Default: "cloud-console-zone", Sanitize: ResourceLabel},
				{Name: "dns_name", Aliases: []string{"domain"}, Kind: String, Required: true, Suffix: ".", Validate: "fqdn", Hint: "a fully qualified domain name ending with a dot, e.g. example.com."},
				{Name: "visibility", Kind: String, Default: "public", Validate: "oneof=public private", Hint: "public or private"},
			},
		},
		{
			ID:          "iam",
			Kind:        KindIAM,
			Resource:    "member",
			Description: "Project IAM role binding",
			Fields: []Field{
				{Name: "member", Aliases: []string{"email", "principal"}, Kind: String, Required: true, Validate: "email", Hint: "an email address such as user@example.com"},
				{Name: "member_type", Kind: String, Default: "user", Validate: "oneof=user serviceAccount group", Hint: "user, serviceAccount or group"},
				{Name: "role", Kind: String, Default: "roles/viewer"},
			},
		},
	},
}
