package chain

// AdSpaceNFTABI is the subset of the AdSpaceNFT contract ABI the service
// calls, plus the ERC-721 Transfer event used to recover minted token ids.
const AdSpaceNFTABI = `[
	{
		"inputs": [{"name": "tokenId", "type": "uint256"}],
		"name": "getAdSpace",
		"outputs": [{
			"name": "",
			"type": "tuple",
			"components": [
				{"name": "owner",            "type": "address"},
				{"name": "websiteURL",       "type": "string"},
				{"name": "spaceType",        "type": "string"},
				{"name": "spaceId",          "type": "string"},
				{"name": "category",         "type": "string"},
				{"name": "height",           "type": "uint256"},
				{"name": "width",            "type": "uint256"},
				{"name": "hourlyRentalRate", "type": "uint256"},
				{"name": "tags",             "type": "string[]"},
				{"name": "status",           "type": "uint8"}
			]
		}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"name": "websiteURL",       "type": "string"},
			{"name": "spaceType",        "type": "string"},
			{"name": "spaceId",          "type": "string"},
			{"name": "category",         "type": "string"},
			{"name": "tokenURI",         "type": "string"},
			{"name": "height",           "type": "uint256"},
			{"name": "width",            "type": "uint256"},
			{"name": "hourlyRentalRate", "type": "uint256"},
			{"name": "tags",             "type": "string[]"}
		],
		"name": "mintAdSpace",
		"outputs": [{"name": "", "type": "uint256"}],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"name": "tokenId",       "type": "uint256"},
			{"name": "startTime",     "type": "uint256"},
			{"name": "endTime",       "type": "uint256"},
			{"name": "websiteURL",    "type": "string"},
			{"name": "adMetadataURI", "type": "string"}
		],
		"name": "rentAdSpace",
		"outputs": [],
		"stateMutability": "payable",
		"type": "function"
	},
	{
		"inputs": [{"name": "usdAmount", "type": "uint256"}],
		"name": "getETHAmountForUSD",
		"outputs": [{"name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [{"name": "tokenId", "type": "uint256"}],
		"name": "tokenURI",
		"outputs": [{"name": "", "type": "string"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "nextTokenId",
		"outputs": [{"name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [{"name": "tokenId", "type": "uint256"}],
		"name": "getCurrentAd",
		"outputs": [{"name": "", "type": "string"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [{"name": "tokenId", "type": "uint256"}],
		"name": "getAllRentals",
		"outputs": [{
			"name": "",
			"type": "tuple[]",
			"components": [
				{"name": "renter",        "type": "address"},
				{"name": "startTime",     "type": "uint256"},
				{"name": "endTime",       "type": "uint256"},
				{"name": "websiteURL",    "type": "string"},
				{"name": "adMetadataURI", "type": "string"}
			]
		}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [{"name": "tokenId", "type": "uint256"}],
		"name": "getAdSpaceStatus",
		"outputs": [{"name": "", "type": "uint8"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "from",    "type": "address"},
			{"indexed": true, "name": "to",      "type": "address"},
			{"indexed": true, "name": "tokenId", "type": "uint256"}
		],
		"name": "Transfer",
		"type": "event"
	}
]`

// NoActiveAd is what getCurrentAd returns when no rental is running.
const NoActiveAd = "No Active Ad"
