package catalog

var azureSpec = &ProviderSpec{
	Name:          Azure,
	Prefix:        "az",
	LocalName:     "azurerm",
	Source:        "hashicorp/azurerm",
	Version:       "~> 3.0",
	DefaultRegion: "eastus",
	Regions: []string{
		"eastus", "eastus2", "westus", "westus2", "centralus",
		"northeurope", "westeurope", "uksouth",
		"southeastasia", "eastasia", "japaneast", "australiaeast",
	},
	RegionInput:      "location",
	CredentialFields: []string{"subscription_id", "tenant_id", "client_id", "client_secret"},
	Modules: []Module{
		{
			ID:          "vpc",
			Kind:        KindNetwork,
			Resource:    "virtual_network",
			Description: "Virtual network with a default subnet",
			Fields: []Field{
				resourceGroupField(),
				{Name: "vnet_name", Aliases: []string{"name"}, Kind: String, Default: "cloud-console-vnet", Sanitize: ResourceLabel},
				{Name: "address_space", Aliases: []string{"cidr_block", "cidr"}, Kind: List, Default: []any{"10.0.0.0/16"}},
				{Name: "subnet_prefix", Kind: String, Default: "10.0.1.0/24", Validate: "cidrv4", Hint: "an IPv4 CIDR such as 10.0.1.0/24"},
			},
		},
		{
			ID:          "storage",
			Kind:        KindStorage,
			Resource:    "storage_account",
			Description: "Storage account with a private container",
			Fields: []Field{
				resourceGroupField(),
				{Name: "storage_account_name", Aliases: []string{"name", "account_name", "bucket_name"}, Kind: String, Required: true, Sanitize: StorageAccountName},
				{Name: "account_tier", Aliases: []string{"tier"}, Kind: String, Default: "Standard", Validate: "oneof=Standard Premium", Hint: "Standard or Premium"},
				{Name: "replication_type", Aliases: []string{"replication"}, Kind: String, Default: "LRS", Validate: "oneof=LRS GRS RAGRS ZRS", Hint: "one of LRS, GRS, RAGRS or ZRS"},
			},
		},
		{
			ID:          "compute",
			Kind:        KindCompute,
			Resource:    "vm",
			Description: "Linux virtual machine",
			Fields: []Field{
				resourceGroupField(),
				{Name: "vm_name", Aliases: []string{"name", "instance_name"}, Kind: String, Required: true, Sanitize: ResourceLabel},
				{Name: "vm_size", Aliases: []string{"size", "instance_type"}, Kind: String, Default: "Standard_B1s"},
				{Name: "admin_username", Kind: String, Default: "azureuser"},
			},
		},
		{
			ID:          "kubernetes",
			Kind:        KindKubernetes,
			Resource:    "cluster",
			Description: "AKS cluster",
			Fields: []Field{
				resourceGroupField(),
				{Name: "cluster_name", Aliases: []string{"name"}, Kind: String, Required: true, Sanitize: ResourceLabel},
				{Name: "node_count", Aliases: []string{"nodes"}, Kind: Number, Default: 2, Validate: "min=1,max=100", Hint: "a number between 1 and 100"},
				{Name: "vm_size", Aliases: []string{"node_size"}, Kind: String, Default: "Standard_D2s_v3"},
				{Name: "dns_prefix", Kind: String},
			},
		},
	},
}

func resourceGroupField() Field {
	return Field{
		Name:    "resource_group_name",
		Aliases: []string{"resource_group"},
		Kind:    String,
		Default: "cloud-console-rg",
	}
}
