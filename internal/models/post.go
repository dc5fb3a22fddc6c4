package models

// ZeroAddress is the sentinel token address meaning the chain's native asset.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// Post is a creator's paid content listing. Price is kept as a decimal
// string backed by a numeric column so on-chain amounts never pass
// through a float.
type Post struct {
	BaseModel
	Title        string `gorm:"size:255" json:"title"`
	Price        string `gorm:"type:numeric(78,0)" json:"price"`
	Image        string `json:"image"`
	TokenAddress string `gorm:"size:42" json:"token_address"`
	ChainID      int64  `json:"chain_id"`
	OwnerAddress string `gorm:"size:42;index" json:"owner_address"`
}

// IsNativeAsset reports whether the post is priced in the chain's base currency.
func (p *Post) IsNativeAsset() bool {
	return p.TokenAddress == ZeroAddress
}
