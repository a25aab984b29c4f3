package utils

import (
	"crypto/md5"
	"encoding/hex"
	"path/filepath"
	"strings"
)

// CalculateMD5 计算字节内容的MD5
func CalculateMD5(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// SafeFileName 只保留上传文件名的最后一段，防止路径穿越
func SafeFileName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	base := filepath.Base(name)
	switch base {
	case "", ".", "..", "/":
		return "upload.pdf"
	}
	return base
}

// FileExt 返回小写扩展名，缺省为 .pdf
func FileExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return ".pdf"
	}
	return ext
}
