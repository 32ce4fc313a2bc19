package entity

// PublishRequest 对应 POST /upload/ipfs 请求体
type PublishRequest struct {
	Filename    string `json:"filename"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

// MetadataAttribute 是 NFT 元数据中的一条 trait
type MetadataAttribute struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

// NFTMetadata 是上传到 IPFS 的元数据文档
type NFTMetadata struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Image       string              `json:"image"`
	Attributes  []MetadataAttribute `json:"attributes"`
}

// PublishedAsset 是一次发布的结果，创建后不可变
type PublishedAsset struct {
	ImageURL    string      `json:"image_url"`
	MetadataURL string      `json:"metadata_url"`
	ImageCID    string      `json:"image_cid"`
	MetadataCID string      `json:"metadata_cid"`
	Metadata    NFTMetadata `json:"metadata"`
}

type IPFSRefs struct {
	ImageCID    string `json:"image_cid"`
	MetadataCID string `json:"metadata_cid"`
}

// PublishResponse 对应 POST /upload/ipfs 响应体
type PublishResponse struct {
	Success     bool        `json:"success"`
	MetadataURL string      `json:"metadata_url"`
	ImageURL    string      `json:"image_url"`
	Metadata    NFTMetadata `json:"metadata"`
	IPFS        IPFSRefs    `json:"ipfs"`
}

// NewPublishResponse 将发布结果转换为对外响应
func NewPublishResponse(asset *PublishedAsset) PublishResponse {
	if asset == nil {
		return PublishResponse{}
	}
	return PublishResponse{
		Success:     true,
		MetadataURL: asset.MetadataURL,
		ImageURL:    asset.ImageURL,
		Metadata:    asset.Metadata,
		IPFS: IPFSRefs{
			ImageCID:    asset.ImageCID,
			MetadataCID: asset.MetadataCID,
		},
	}
}
